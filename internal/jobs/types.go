package jobs

type JobType string

const (
	// JobPurgeSessions drops every session of a deleted account.
	JobPurgeSessions JobType = "purge_sessions"
	// JobDeleteAvatar removes the stored avatar object of a deleted account.
	JobDeleteAvatar JobType = "delete_avatar"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobPurgeSessions, JobDeleteAvatar:
		return true
	default:
		return false
	}
}
