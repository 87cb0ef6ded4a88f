package session

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

const TeacherDisplayName = "Teacher"

// Participant is one entry of the presence roster, keyed by connection id.
type Participant struct {
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	SocketID string `json:"socketId"`
}

func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}
