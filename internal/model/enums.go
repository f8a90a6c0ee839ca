package model

// SessionStatus is the derived risk classification of a driving session.
type SessionStatus string

const (
	SessionStatusSafe    SessionStatus = "Safe"
	SessionStatusWarning SessionStatus = "Warning"
	SessionStatusDanger  SessionStatus = "Danger"
)

// AlertType classifies what triggered a detection alert.
type AlertType string

const (
	AlertTypeDrowsy   AlertType = "drowsy"
	AlertTypeYawn     AlertType = "yawn"
	AlertTypeHeadTilt AlertType = "head_tilt"
)

var ValidAlertTypes = []string{
	string(AlertTypeDrowsy),
	string(AlertTypeYawn),
	string(AlertTypeHeadTilt),
}

var ValidSessionStatuses = []string{
	string(SessionStatusSafe),
	string(SessionStatusWarning),
	string(SessionStatusDanger),
}

// DeriveStatus classifies a session from its final drowsy-event count and
// maximum fatigue score. Thresholds are evaluated in order.
func DeriveStatus(drowsyCount int, maxScore float64) SessionStatus {
	switch {
	case drowsyCount > 5 || maxScore > 8:
		return SessionStatusDanger
	case drowsyCount > 0:
		return SessionStatusWarning
	default:
		return SessionStatusSafe
	}
}

// Role of an authenticated caller. Only "user" is minted today.
const RoleUser = "user"
