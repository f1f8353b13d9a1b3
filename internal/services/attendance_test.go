package services

import (
	"testing"
	"time"

	"github.com/huangang/studyhub/internal/models"
	"github.com/huangang/studyhub/internal/testutil"
)

func newRecorderRoom(t *testing.T) (*room, *AttendanceRecorder, *models.StudySession) {
	t.Helper()
	r := newRoom(t)
	session := testutil.CreateSession(t, r.db, r.study, "Week 1", time.Now().Add(24*time.Hour))
	return r, NewAttendanceRecorder(r.db, r.notifier()), session
}

func (r *room) logCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	r.db.Model(&models.AttendanceChangeLog{}).Count(&n)
	return n
}

func TestAttendanceRecorder_UpdateMissingRow(t *testing.T) {
	r, rec, session := newRecorderRoom(t)

	_, err := rec.Update(r.study, session, r.member.ID, models.AttendanceLate, r.leader)
	if !isNotFound(err) {
		t.Errorf("Update() error = %v, expected not found", err)
	}
	if r.logCount(t) != 0 {
		t.Error("missing row must not produce a log entry")
	}
}

func TestAttendanceRecorder_RecordCreates(t *testing.T) {
	r, rec, session := newRecorderRoom(t)

	res, err := rec.Record(r.study, session, r.member.ID, models.AttendanceLate, r.leader)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !res.Created || res.OldStatus != models.AttendanceLate || res.NewStatus != models.AttendanceLate {
		t.Errorf("result = %+v, expected created LATE -> LATE", res)
	}
	if r.logCount(t) != 0 {
		t.Error("creation must not write a change log entry")
	}

	var n models.Notification
	if err := r.db.Where("user_id = ? AND type = ?", r.member.ID, models.NotifyAttendanceChanged).First(&n).Error; err != nil {
		t.Fatalf("expected attendance notification: %v", err)
	}
	if n.Message != "[Go] Week 1 attendance changed: LATE -> LATE" {
		t.Errorf("Message = %q", n.Message)
	}
	if n.LinkURL != "/room/1/sessions" {
		t.Errorf("LinkURL = %q", n.LinkURL)
	}
}

func TestAttendanceRecorder_ChangeLogsAndNotifies(t *testing.T) {
	r, rec, session := newRecorderRoom(t)
	if _, err := rec.Record(r.study, session, r.member.ID, models.AttendancePresent, r.member); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	res, err := rec.Update(r.study, session, r.member.ID, models.AttendanceLate, r.manager)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !res.Changed || res.Created || res.OldStatus != models.AttendancePresent {
		t.Errorf("result = %+v", res)
	}

	var logs []models.AttendanceChangeLog
	r.db.Find(&logs)
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}
	l := logs[0]
	if l.OldStatus != models.AttendancePresent || l.NewStatus != models.AttendanceLate || l.ChangedByID != r.manager.ID || l.TargetUserID != r.member.ID {
		t.Errorf("log = %+v", l)
	}

	var att models.Attendance
	r.db.Where("session_id = ? AND user_id = ?", session.ID, r.member.ID).First(&att)
	if att.Status != models.AttendanceLate || att.CheckedAt == nil {
		t.Errorf("attendance = %+v", att)
	}
	if c := r.count(t, r.member, models.NotifyAttendanceChanged); c != 1 {
		t.Errorf("member received %d attendance notifications, expected 1", c)
	}
}

func TestAttendanceRecorder_UnchangedIsNoop(t *testing.T) {
	r, rec, session := newRecorderRoom(t)
	if _, err := rec.Record(r.study, session, r.member.ID, models.AttendanceLate, r.leader); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	var before models.Attendance
	r.db.Where("user_id = ?", r.member.ID).First(&before)
	notifications := r.count(t, r.member, "")

	for _, op := range []func(*models.Study, *models.StudySession, uint, models.AttendanceStatus, *models.User) (*AttendanceResult, error){rec.Update, rec.Record} {
		res, err := op(r.study, session, r.member.ID, models.AttendanceLate, r.leader)
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if res.Changed {
			t.Error("unchanged status should report Changed=false")
		}
	}

	var after models.Attendance
	r.db.Where("user_id = ?", r.member.ID).First(&after)
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("no-op must not write the attendance row")
	}
	if r.logCount(t) != 0 {
		t.Error("no-op must not log")
	}
	if c := r.count(t, r.member, ""); c != notifications {
		t.Errorf("no-op created %d notifications", c-notifications)
	}
}

func TestAttendanceRecorder_InvalidStatus(t *testing.T) {
	r, rec, session := newRecorderRoom(t)
	_, err := rec.Record(r.study, session, r.member.ID, models.AttendanceStatus("SLEEPING"), r.leader)
	var ve *ValidationError
	if !asValidation(err, &ve) || ve.Field != "status" {
		t.Errorf("Record() error = %v, expected status validation error", err)
	}
}
