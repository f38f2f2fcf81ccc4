package scheduling

import (
	"sort"
	"strings"

	"github.com/clinic/clinic/internal/platform/apperror"
)

// RoomPolicy decides which rooms an appointment type may use: sessions go to
// the clinical pool, everything else to the office.
type RoomPolicy struct {
	clinical map[string]string
	office   string
}

// NewRoomPolicy builds a policy from configured room names. Matching is
// case-insensitive; accepted rooms are rewritten to their configured spelling.
func NewRoomPolicy(clinicalRooms []string, officeRoom string) RoomPolicy {
	p := RoomPolicy{clinical: make(map[string]string, len(clinicalRooms)), office: strings.TrimSpace(officeRoom)}
	for _, r := range clinicalRooms {
		r = strings.TrimSpace(r)
		if r != "" {
			p.clinical[strings.ToUpper(r)] = r
		}
	}
	return p
}

// Check returns the canonical room for apptType, or nil when no room was
// requested. A blank room counts as no room.
func (p RoomPolicy) Check(apptType string, room *string) (*string, error) {
	if room == nil || strings.TrimSpace(*room) == "" {
		return nil, nil
	}
	key := strings.ToUpper(strings.TrimSpace(*room))

	if isClinical(apptType) {
		canonical, ok := p.clinical[key]
		if !ok {
			return nil, apperror.Validation("room %q is not a treatment room; sessions must use one of %s", *room, strings.Join(p.ClinicalRooms(), ", "))
		}
		return &canonical, nil
	}
	if key != strings.ToUpper(p.office) {
		return nil, apperror.Validation("room %q cannot host %q appointments; only %s can", *room, apptType, p.office)
	}
	office := p.office
	return &office, nil
}

// ClinicalRooms lists the clinical pool in sorted order.
func (p RoomPolicy) ClinicalRooms() []string {
	out := make([]string, 0, len(p.clinical))
	for _, r := range p.clinical {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (p RoomPolicy) OfficeRoom() string { return p.office }
