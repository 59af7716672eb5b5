package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/profile"
	"github.com/gladschool/portal/core/user"
	"github.com/gladschool/portal/storage/database"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr, err := repo.CreateUser(context.Background(), user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed, %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, repo profile.Repository, admissionNumber, first, last string, classID int) profile.Student {
	s, err := repo.CreateStudent(context.Background(), profile.Student{
		AdmissionNumber: admissionNumber,
		FirstName:       first,
		LastName:        last,
		Email:           admissionNumber + "@students.test",
		ClassID:         classID,
		IsActive:        true,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed, %v", err)
	}
	return s
}

func CreateStaff(t *testing.T, repo profile.Repository, staffNumber, name string) profile.Staff {
	s, err := repo.CreateStaff(context.Background(), profile.Staff{
		StaffNumber: staffNumber,
		Name:        name,
		Email:       staffNumber + "@staff.test",
		Position:    "Teacher",
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("CreateStaff() failed, %v", err)
	}
	return s
}

// School is a current session and term with one class.
type School struct {
	Session  academic.Session
	Term     academic.Term
	Class    academic.Class
	Subjects []academic.Subject
}

func (s School) Period() academic.Period {
	return academic.Period{SessionID: s.Session.ID, TermID: s.Term.ID}
}

// CreateSchool seeds a current session spanning this year, its current first term,
// and a class taking one subject per code.
func CreateSchool(t *testing.T, repo academic.Repository, className string, subjectCodes ...string) School {
	ctx := context.Background()
	year := time.Now().Year()
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	var (
		school School
		err    error
	)
	school.Session, err = repo.CreateSession(ctx, academic.Session{
		Name:      fmt.Sprintf("%d/%d", year, year+1),
		StartDate: start,
		EndDate:   end,
		IsCurrent: true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSession() failed, %v", err)
	}
	school.Term, err = repo.CreateTerm(ctx, academic.Term{
		SessionID: school.Session.ID,
		Name:      academic.TermFirst,
		StartDate: null.TimeFrom(start),
		EndDate:   null.TimeFrom(end),
		IsCurrent: true,
	})
	if err != nil {
		t.Fatalf("CreateTerm() failed, %v", err)
	}

	if school.Class, err = repo.CreateClass(ctx, academic.Class{Name: className, Level: "JSS"}); err != nil {
		t.Fatalf("CreateClass() failed, %v", err)
	}
	for _, code := range subjectCodes {
		subj, err := repo.CreateSubject(ctx, academic.Subject{Name: code, Code: code})
		if err != nil {
			t.Fatalf("CreateSubject() failed, %v", err)
		}
		school.Subjects = append(school.Subjects, subj)
		school.Class.SubjectIDs = append(school.Class.SubjectIDs, subj.ID)
	}
	if err = repo.SetClassSubjects(ctx, school.Class.ID, school.Class.SubjectIDs); err != nil {
		t.Fatalf("SetClassSubjects() failed, %v", err)
	}
	return school
}

// PrepareDB connects to TEST_DATABASE_URL and migrates it from scratch.
// The test is skipped when the variable is unset.
func PrepareDB(t *testing.T) *sqlx.DB {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	db, err := database.OpenURL(url)
	if err != nil {
		t.Fatalf("OpenURL() failed, %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, "reset"); err != nil {
		t.Fatalf("migrate reset failed, %v", err)
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		t.Fatalf("migrate up failed, %v", err)
	}
	return db
}
