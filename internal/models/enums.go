package models

import "strings"

// UserRole is the site-wide role. It is independent of any study membership.
type UserRole string

const (
	UserRoleUser  UserRole = "USER"
	UserRoleAdmin UserRole = "ADMIN"
)

// ParseUserRole maps "ADMIN" (any case) to UserRoleAdmin and everything else to UserRoleUser.
func ParseUserRole(s string) UserRole {
	if strings.EqualFold(strings.TrimSpace(s), string(UserRoleAdmin)) {
		return UserRoleAdmin
	}
	return UserRoleUser
}

// MembershipRole is a user's role inside one study.
type MembershipRole string

const (
	RoleLeader  MembershipRole = "LEADER"
	RoleManager MembershipRole = "MANAGER"
	RoleMember  MembershipRole = "MEMBER"
)

// Rank orders roles for listings: leader first.
func (r MembershipRole) Rank() int {
	switch r {
	case RoleLeader:
		return 0
	case RoleManager:
		return 1
	case RoleMember:
		return 2
	}
	return 3
}

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationApproved ApplicationStatus = "APPROVED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

type PostType string

const (
	PostNormal PostType = "NORMAL"
	PostNotice PostType = "NOTICE"
)

func ParsePostType(s string) PostType {
	if strings.EqualFold(strings.TrimSpace(s), string(PostNotice)) {
		return PostNotice
	}
	return PostNormal
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceExcused:
		return true
	}
	return false
}

// Attended reports whether the status counts toward a member's attendance rate on the room dashboard.
func (s AttendanceStatus) Attended() bool {
	return s == AttendancePresent || s == AttendanceLate
}

var attendanceStatuses = []AttendanceStatus{AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceExcused}

// AttendedStatuses lists the statuses for which Attended is true.
func AttendedStatuses() []AttendanceStatus {
	var out []AttendanceStatus
	for _, s := range attendanceStatuses {
		if s.Attended() {
			out = append(out, s)
		}
	}
	return out
}

type NotificationType string

const (
	NotifyApplicationSubmitted NotificationType = "APPLICATION_SUBMITTED"
	NotifyApplicationApproved  NotificationType = "APPLICATION_APPROVED"
	NotifyApplicationRejected  NotificationType = "APPLICATION_REJECTED"
	NotifyPostCreated          NotificationType = "POST_CREATED"
	NotifyCommentCreated       NotificationType = "COMMENT_CREATED"
	NotifyAttendanceChanged    NotificationType = "ATTENDANCE_CHANGED"
	NotifyFileUploaded         NotificationType = "STUDY_FILE_UPLOADED"
)
