package services

import (
	"time"

	"github.com/huangang/studyhub/internal/authz"
	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/utils"
	"github.com/huangang/studyhub/pkg/logger"
	"gorm.io/gorm"
)

type BoardService struct {
	db       *gorm.DB
	notifier *NotificationService
}

func NewBoardService(db *gorm.DB, notifier *NotificationService) *BoardService {
	return &BoardService{db: db, notifier: notifier}
}

type PostInput struct {
	Title   string `json:"title" binding:"required,notblank,max=200"`
	Content string `json:"content" binding:"required,notblank"`
	Type    string `json:"type"`
}

type CommentInput struct {
	Content string `json:"content" binding:"required,notblank"`
}

type BoardList struct {
	Notices       []models.Post `json:"notices"`
	Posts         []models.Post `json:"posts"`
	CanPostNotice bool          `json:"can_post_notice"`
}

type CommentView struct {
	models.Comment
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

type PostDetail struct {
	Post      *models.Post  `json:"post"`
	Comments  []CommentView `json:"comments"`
	CanEdit   bool          `json:"can_edit"`
	CanDelete bool          `json:"can_delete"`
}

func cleanPost(in PostInput) (title, content string, err error) {
	title = utils.SanitizeText(in.Title)
	if title == "" {
		return "", "", invalid("title", "title is required")
	}
	content = utils.SanitizeHTML(in.Content)
	if content == "" {
		return "", "", invalid("content", "content is required")
	}
	return title, content, nil
}

func cleanComment(in CommentInput) (string, error) {
	content := utils.SanitizeHTML(in.Content)
	if content == "" {
		return "", invalid("content", "content is required")
	}
	return content, nil
}

func (s *BoardService) List(studyID uint, actor *models.User) (*BoardList, error) {
	study, caps, err := roomAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	out := &BoardList{CanPostNotice: caps.CanPostNotice()}
	if out.Notices, err = s.latestPosts(study.ID, models.PostNotice, -1); err != nil {
		return nil, err
	}
	if out.Posts, err = s.latestPosts(study.ID, models.PostNormal, -1); err != nil {
		return nil, err
	}
	return out, nil
}

// latestPosts returns live posts of one type, newest first. limit < 0 means all.
func (s *BoardService) latestPosts(studyID uint, typ models.PostType, limit int) ([]models.Post, error) {
	posts := make([]models.Post, 0)
	err := s.db.Preload("Writer").
		Where("study_id = ? AND type = ? AND deleted = ?", studyID, typ, false).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// Create stores a post. NOTICE silently becomes NORMAL when the actor may not post notices.
func (s *BoardService) Create(studyID uint, actor *models.User, in PostInput) (*models.Post, error) {
	study, caps, err := roomAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	title, content, err := cleanPost(in)
	if err != nil {
		return nil, err
	}
	typ := models.ParsePostType(in.Type)
	if typ == models.PostNotice && !caps.CanPostNotice() {
		typ = models.PostNormal
	}

	post := &models.Post{StudyID: study.ID, WriterID: actor.ID, Title: title, Content: content, Type: typ}
	if err := s.db.Create(post).Error; err != nil {
		return nil, err
	}
	post.Writer = actor
	s.notifier.PostCreated(study, post, actor)
	return post, nil
}

func (s *BoardService) loadPost(studyID, postID uint) (*models.Post, error) {
	var post models.Post
	err := s.db.Preload("Writer").
		Where("id = ? AND study_id = ? AND deleted = ?", postID, studyID, false).
		First(&post).Error
	if isRecordNotFound(err) {
		return nil, notFound("post")
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *BoardService) Get(studyID, postID uint, actor *models.User) (*PostDetail, error) {
	study, caps, err := roomAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	post, err := s.loadPost(study.ID, postID)
	if err != nil {
		return nil, err
	}
	var comments []models.Comment
	if err := s.db.Preload("Writer").
		Where("post_id = ? AND deleted = ?", post.ID, false).
		Order("created_at ASC, id ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, CommentView{Comment: c, CanEdit: caps.CanEditContent(c.WriterID), CanDelete: caps.CanDeleteContent(c.WriterID)})
	}
	return &PostDetail{
		Post:      post,
		Comments:  views,
		CanEdit:   caps.CanEditContent(post.WriterID),
		CanDelete: caps.CanDeleteContent(post.WriterID),
	}, nil
}

// Update edits title and content. The post type never changes.
func (s *BoardService) Update(studyID, postID uint, actor *models.User, in PostInput) (*models.Post, error) {
	study, caps, err := roomAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	post, err := s.loadPost(study.ID, postID)
	if err != nil {
		return nil, err
	}
	if !caps.CanEditContent(post.WriterID) {
		return nil, ErrForbidden
	}
	title, content, err := cleanPost(in)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(post).Updates(map[string]interface{}{"title": title, "content": content}).Error; err != nil {
		return nil, err
	}
	post.Title, post.Content = title, content
	return post, nil
}

func (s *BoardService) Delete(studyID, postID uint, actor *models.User) error {
	study, caps, err := roomAccess(s.db, actor, studyID)
	if err != nil {
		return err
	}
	post, err := s.loadPost(study.ID, postID)
	if err != nil {
		return err
	}
	if !caps.CanDeleteContent(post.WriterID) {
		return ErrForbidden
	}
	if err := softDelete(s.db, post); err != nil {
		return err
	}
	logger.Info().Uint("study_id", study.ID).Uint("post_id", post.ID).Uint("actor_id", actor.ID).Msg("post deleted")
	return nil
}

func softDelete(db *gorm.DB, model interface{}) error {
	return db.Model(model).Updates(map[string]interface{}{"deleted": true, "deleted_at": time.Now()}).Error
}

// --- comments ---

func (s *BoardService) AddComment(studyID, postID uint, actor *models.User, in CommentInput) (*models.Comment, error) {
	study, _, err := roomAccess(s.db, actor, studyID)
	if err != nil {
		return nil, err
	}
	post, err := s.loadPost(study.ID, postID)
	if err != nil {
		return nil, err
	}
	content, err := cleanComment(in)
	if err != nil {
		return nil, err
	}
	comment := &models.Comment{PostID: post.ID, WriterID: actor.ID, Content: content}
	if err := s.db.Create(comment).Error; err != nil {
		return nil, err
	}
	comment.Writer = actor
	s.notifier.CommentCreated(study, post, actor)
	return comment, nil
}

func (s *BoardService) commentAccess(studyID, postID, commentID uint, actor *models.User) (*models.Comment, authz.Capabilities, error) {
	study, caps, err := roomAccess(s.db, actor, studyID)
	if err != nil {
		return nil, caps, err
	}
	post, err := s.loadPost(study.ID, postID)
	if err != nil {
		return nil, caps, err
	}
	var comment models.Comment
	err = s.db.Where("id = ? AND post_id = ? AND deleted = ?", commentID, post.ID, false).First(&comment).Error
	if isRecordNotFound(err) {
		return nil, caps, notFound("comment")
	}
	if err != nil {
		return nil, caps, err
	}
	return &comment, caps, nil
}

func (s *BoardService) UpdateComment(studyID, postID, commentID uint, actor *models.User, in CommentInput) (*models.Comment, error) {
	comment, caps, err := s.commentAccess(studyID, postID, commentID, actor)
	if err != nil {
		return nil, err
	}
	if !caps.CanEditContent(comment.WriterID) {
		return nil, ErrForbidden
	}
	content, err := cleanComment(in)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(comment).Update("content", content).Error; err != nil {
		return nil, err
	}
	comment.Content = content
	return comment, nil
}

func (s *BoardService) DeleteComment(studyID, postID, commentID uint, actor *models.User) error {
	comment, caps, err := s.commentAccess(studyID, postID, commentID, actor)
	if err != nil {
		return err
	}
	if !caps.CanDeleteContent(comment.WriterID) {
		return ErrForbidden
	}
	return softDelete(s.db, comment)
}
