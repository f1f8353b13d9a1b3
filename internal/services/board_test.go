package services

import (
	"strings"
	"testing"

	"github.com/huangang/studyhub/internal/models"
)

func TestBoardService_CreateNoticeDowngrade(t *testing.T) {
	tests := []struct {
		name  string
		actor func(r *room) *models.User
		want  models.PostType
	}{
		{"leader keeps notice", func(r *room) *models.User { return r.leader }, models.PostNotice},
		{"manager keeps notice", func(r *room) *models.User { return r.manager }, models.PostNotice},
		{"admin keeps notice", func(r *room) *models.User { return r.admin }, models.PostNotice},
		{"member is downgraded", func(r *room) *models.User { return r.member }, models.PostNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRoom(t)
			svc := NewBoardService(r.db, r.notifier())
			post, err := svc.Create(r.study.ID, tt.actor(r), PostInput{Title: "Week 1", Content: "read ch. 1", Type: "notice"})
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if post.Type != tt.want {
				t.Errorf("Type = %q, expected %q", post.Type, tt.want)
			}
		})
	}
}

func TestBoardService_CreateValidatesAndSanitises(t *testing.T) {
	r := newRoom(t)
	svc := NewBoardService(r.db, r.notifier())

	var vErr *ValidationError
	if _, err := svc.Create(r.study.ID, r.member, PostInput{Title: " ", Content: "x"}); !asValidation(err, &vErr) || vErr.Field != "title" {
		t.Errorf("blank title error = %v", err)
	}
	if _, err := svc.Create(r.study.ID, r.member, PostInput{Title: "t", Content: "<script>alert(1)</script>"}); !asValidation(err, &vErr) || vErr.Field != "content" {
		t.Errorf("script-only content error = %v", err)
	}
	if _, err := svc.Create(r.study.ID, r.outsider, PostInput{Title: "t", Content: "c"}); !isForbidden(err) {
		t.Errorf("outsider Create() error = %v", err)
	}

	post, err := svc.Create(r.study.ID, r.member, PostInput{Title: "<b>Hi</b>", Content: `<p onclick="x()">hello</p>`})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if post.Title != "Hi" {
		t.Errorf("Title = %q", post.Title)
	}
	if strings.Contains(post.Content, "onclick") || !strings.Contains(post.Content, "hello") {
		t.Errorf("Content = %q", post.Content)
	}

	for _, u := range []*models.User{r.leader, r.manager} {
		if c := r.count(t, u, models.NotifyPostCreated); c != 1 {
			t.Errorf("user %d notifications = %d, expected 1", u.ID, c)
		}
	}
	if c := r.count(t, r.member, models.NotifyPostCreated); c != 0 {
		t.Errorf("author notifications = %d, expected 0", c)
	}
}

func TestBoardService_ListSplitsTypes(t *testing.T) {
	r := newRoom(t)
	svc := NewBoardService(r.db, r.notifier())
	notice, _ := svc.Create(r.study.ID, r.leader, PostInput{Title: "n", Content: "c", Type: "NOTICE"})
	p1, _ := svc.Create(r.study.ID, r.member, PostInput{Title: "p1", Content: "c"})
	p2, _ := svc.Create(r.study.ID, r.member, PostInput{Title: "p2", Content: "c"})
	gone, _ := svc.Create(r.study.ID, r.member, PostInput{Title: "gone", Content: "c"})
	if err := svc.Delete(r.study.ID, gone.ID, r.member); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	list, err := svc.List(r.study.ID, r.member)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list.Notices) != 1 || list.Notices[0].ID != notice.ID {
		t.Errorf("Notices = %+v", list.Notices)
	}
	if len(list.Posts) != 2 || list.Posts[0].ID != p2.ID || list.Posts[1].ID != p1.ID {
		t.Errorf("Posts = %+v", list.Posts)
	}
	if list.CanPostNotice {
		t.Error("member should not be able to post notices")
	}
}

func TestBoardService_EditAndDeletePermissions(t *testing.T) {
	r := newRoom(t)
	svc := NewBoardService(r.db, r.notifier())
	post, _ := svc.Create(r.study.ID, r.member, PostInput{Title: "mine", Content: "c"})

	if _, err := svc.Update(r.study.ID, post.ID, r.leader, PostInput{Title: "x", Content: "y"}); !isForbidden(err) {
		t.Errorf("leader Update() error = %v, expected forbidden", err)
	}
	updated, err := svc.Update(r.study.ID, post.ID, r.member, PostInput{Title: "edited", Content: "body", Type: "NOTICE"})
	if err != nil {
		t.Fatalf("owner Update() error = %v", err)
	}
	if updated.Title != "edited" || updated.Type != models.PostNormal {
		t.Errorf("updated = %+v", updated)
	}

	detail, err := svc.Get(r.study.ID, post.ID, r.manager)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if detail.CanEdit || !detail.CanDelete {
		t.Errorf("manager flags edit=%v delete=%v", detail.CanEdit, detail.CanDelete)
	}

	if err := svc.Delete(r.study.ID, post.ID, r.manager); err != nil {
		t.Fatalf("manager Delete() error = %v", err)
	}
	var stored models.Post
	r.db.First(&stored, post.ID)
	if !stored.Deleted || stored.DeletedAt == nil {
		t.Errorf("post not soft deleted: %+v", stored)
	}
	if _, err := svc.Get(r.study.ID, post.ID, r.member); !isNotFound(err) {
		t.Errorf("Get() of deleted post error = %v, expected not found", err)
	}
}

func TestBoardService_OtherMemberCannotDelete(t *testing.T) {
	r := newRoom(t)
	svc := NewBoardService(r.db, r.notifier())
	post, _ := svc.Create(r.study.ID, r.manager, PostInput{Title: "t", Content: "c"})
	if err := svc.Delete(r.study.ID, post.ID, r.member); !isForbidden(err) {
		t.Errorf("member Delete() error = %v, expected forbidden", err)
	}
}

func TestBoardService_Comments(t *testing.T) {
	r := newRoom(t)
	svc := NewBoardService(r.db, r.notifier())
	post, _ := svc.Create(r.study.ID, r.member, PostInput{Title: "t", Content: "c"})

	own, err := svc.AddComment(r.study.ID, post.ID, r.member, CommentInput{Content: "self note"})
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if c := r.count(t, r.member, models.NotifyCommentCreated); c != 0 {
		t.Errorf("self comment notified the writer %d times", c)
	}

	other, err := svc.AddComment(r.study.ID, post.ID, r.leader, CommentInput{Content: "nice"})
	if err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if c := r.count(t, r.member, models.NotifyCommentCreated); c != 1 {
		t.Errorf("writer notifications = %d, expected 1", c)
	}

	if _, err := svc.UpdateComment(r.study.ID, post.ID, other.ID, r.member, CommentInput{Content: "hijack"}); !isForbidden(err) {
		t.Errorf("UpdateComment() by non-owner error = %v", err)
	}
	if _, err := svc.UpdateComment(r.study.ID, post.ID, own.ID, r.member, CommentInput{Content: "fixed"}); err != nil {
		t.Errorf("UpdateComment() error = %v", err)
	}
	if err := svc.DeleteComment(r.study.ID, post.ID, other.ID, r.member); !isForbidden(err) {
		t.Errorf("DeleteComment() by member error = %v", err)
	}
	if err := svc.DeleteComment(r.study.ID, post.ID, own.ID, r.manager); err != nil {
		t.Errorf("manager DeleteComment() error = %v", err)
	}

	detail, err := svc.Get(r.study.ID, post.ID, r.member)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(detail.Comments) != 1 || detail.Comments[0].ID != other.ID {
		t.Fatalf("Comments = %+v", detail.Comments)
	}
	if detail.Comments[0].CanEdit || detail.Comments[0].CanDelete {
		t.Error("member should not edit or delete the leader's comment")
	}
	if !detail.CanEdit || !detail.CanDelete {
		t.Error("owner should edit and delete own post")
	}

	if _, err := svc.AddComment(r.study.ID, post.ID, r.member, CommentInput{Content: "  "}); err == nil {
		t.Error("blank comment should be rejected")
	}
}
