package profile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/profile"
	inmemdb "github.com/gladschool/portal/storage/database/inmem"
)

func TestImportStudent(t *testing.T) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewProfileRepository(db)
	ctx := context.Background()

	tests := []struct {
		name      string
		ns        profile.NewStudent
		wantField string
		wantErr   error
	}{
		{
			name: "imported",
			ns:   profile.NewStudent{AdmissionNumber: " ADM/001 ", FirstName: " Ada", LastName: "Obi ", Email: "Ada@School.TEST", ClassID: 3},
		},
		{
			name:      "missing admission number",
			ns:        profile.NewStudent{FirstName: "Bola", LastName: "Ade"},
			wantField: "admission_number",
		},
		{
			name:      "bad email",
			ns:        profile.NewStudent{AdmissionNumber: "ADM/002", FirstName: "Bola", LastName: "Ade", Email: "bola"},
			wantField: "email",
		},
		{
			name:      "duplicate admission number",
			ns:        profile.NewStudent{AdmissionNumber: "ADM/001", FirstName: "Chidi", LastName: "Eze"},
			wantField: "admission_number",
			wantErr:   profile.ErrStudentExists,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := profile.ImportStudent(ctx, repo, tt.ns)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.NotZero(t, s.ID)
				assert.Equal(t, "ADM/001", s.AdmissionNumber)
				assert.Equal(t, "Ada Obi", s.FullName())
				assert.Equal(t, "ada@school.test", s.Email)
				assert.True(t, s.IsActive)

				stored, err := repo.GetStudentByAdmissionNumber(ctx, "ADM/001")
				require.NoError(t, err)
				assert.Equal(t, s, stored)
				return
			}
			require.Error(t, err)
			require.True(t, core.IsValidationError(err), "want validation error, got %v", err)
			assert.Equal(t, tt.wantField, core.ValidationFields(err)[0].Field)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestImportStaff(t *testing.T) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewProfileRepository(db)
	ctx := context.Background()

	s, err := profile.ImportStaff(ctx, repo, profile.NewStaff{StaffNumber: "STF001", Name: "  Mrs  Bello ", Email: "BELLO@school.test", Position: "Bursar"})
	require.NoError(t, err)
	assert.Equal(t, "bello@school.test", s.Email)
	assert.True(t, s.IsActive)

	got, err := repo.GetStaff(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = profile.ImportStaff(ctx, repo, profile.NewStaff{StaffNumber: "STF001", Name: "Someone Else"})
	require.Error(t, err)
	assert.ErrorIs(t, err, profile.ErrStaffExists)
	assert.Equal(t, "staff_number", core.ValidationFields(err)[0].Field)

	_, err = repo.GetStaff(ctx, 999)
	assert.Equal(t, profile.ErrStaffNotFound, err)
}

func TestStudent_FullName(t *testing.T) {
	tests := []struct {
		s    profile.Student
		want string
	}{
		{profile.Student{FirstName: "Ada", LastName: "Obi"}, "Ada Obi"},
		{profile.Student{FirstName: "Ada"}, "Ada"},
		{profile.Student{LastName: "Obi"}, "Obi"},
		{profile.Student{}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.s.FullName())
	}
}
