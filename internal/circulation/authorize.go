package circulation

type action int

const (
	actRequestBook action = iota
	actDecideRequest
	actIssueCopy
	actReturnCopy
	actSetCopyStatus
	actExportIssues
)

func (a action) String() string {
	switch a {
	case actRequestBook:
		return "request book"
	case actDecideRequest:
		return "decide request"
	case actIssueCopy:
		return "issue copy"
	case actReturnCopy:
		return "return copy"
	case actSetCopyStatus:
		return "set copy status"
	case actExportIssues:
		return "export issues"
	}
	return "unknown"
}

// authorize は副作用のない権限判定
func authorize(p Principal, a action) error {
	if p.UserID <= 0 {
		return ErrForbidden("unauthenticated principal")
	}
	if _, ok := ParseRole(string(p.Role)); !ok {
		return ErrForbidden("unknown role")
	}
	switch a {
	case actRequestBook:
		return nil
	default:
		if !p.IsAdmin() {
			return ErrForbidden("admin role required to " + a.String())
		}
		return nil
	}
}

// visibleTo: admin は全件、それ以外は本人のレコードだけ
func visibleTo(p Principal, ownerID int64) bool {
	return p.IsAdmin() || p.UserID == ownerID
}
