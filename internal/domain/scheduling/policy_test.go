package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/platform/apperror"
)

func testPolicy() RoomPolicy {
	return NewRoomPolicy([]string{"PHYSIO_1", "PHYSIO_2", "PHYSIO_3"}, "OFFICE")
}

func strPtr(s string) *string { return &s }

func TestRoomPolicy_SessionUsesClinicalPool(t *testing.T) {
	p := testPolicy()

	room, err := p.Check("session", strPtr("PHYSIO_2"))
	require.NoError(t, err)
	assert.Equal(t, "PHYSIO_2", *room)

	room, err = p.Check("session", strPtr(" physio_1 "))
	require.NoError(t, err)
	assert.Equal(t, "PHYSIO_1", *room, "room is rewritten to its configured spelling")

	_, err = p.Check("session", strPtr("OFFICE"))
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = p.Check("session", strPtr("PHYSIO_9"))
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestRoomPolicy_NonClinicalUsesOffice(t *testing.T) {
	p := testPolicy()

	room, err := p.Check("assessment", strPtr("office"))
	require.NoError(t, err)
	assert.Equal(t, "OFFICE", *room)

	_, err = p.Check("assessment", strPtr("PHYSIO_1"))
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestRoomPolicy_SessionMatchesExactly(t *testing.T) {
	p := testPolicy()
	for _, apptType := range []string{"Session", "SESSION", "sessions"} {
		_, err := p.Check(apptType, strPtr("PHYSIO_1"))
		assert.True(t, apperror.Is(err, apperror.KindValidation), "type %q is not clinical", apptType)

		room, err := p.Check(apptType, strPtr("OFFICE"))
		require.NoError(t, err, "type %q", apptType)
		assert.Equal(t, "OFFICE", *room)
	}
}

func TestRoomPolicy_NoRoom(t *testing.T) {
	p := testPolicy()
	for _, room := range []*string{nil, strPtr(""), strPtr("   ")} {
		got, err := p.Check("session", room)
		assert.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestRoomPolicy_ClinicalRoomsSorted(t *testing.T) {
	p := NewRoomPolicy([]string{"PHYSIO_3", " PHYSIO_1", "", "PHYSIO_2"}, "OFFICE")
	assert.Equal(t, []string{"PHYSIO_1", "PHYSIO_2", "PHYSIO_3"}, p.ClinicalRooms())
	assert.Equal(t, "OFFICE", p.OfficeRoom())
}
