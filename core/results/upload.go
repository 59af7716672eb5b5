package results

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/gladschool/portal/core"
	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/profile"
	"github.com/gladschool/portal/core/user"
)

// UploadColumns is the expected CSV header.
var UploadColumns = []string{"admission_number", "score", "remarks"}

var errMissingColumns = errors.New("CSV must have admission_number and score columns")

// UploadSummary reports what a bulk upload did.
type UploadSummary struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

func (s UploadSummary) ErrorCount() int { return len(s.Errors) }

// Preview returns the first `limit` errors, plus a trailing "... and N more errors." line when some were cut.
func (s UploadSummary) Preview(limit int) []string {
	if limit <= 0 || len(s.Errors) <= limit {
		return s.Errors
	}
	preview := make([]string, 0, limit+1)
	preview = append(preview, s.Errors[:limit]...)
	return append(preview, fmt.Sprintf("... and %d more errors.", len(s.Errors)-limit))
}

// UploadResults records one assessment's scores for a class from CSV.
// Rows missing an admission number or score are skipped silently; rows that cannot be
// recorded are reported in the summary. Row numbers count the header as row 1.
// All recorded rows are written in one transaction.
func (svc *Service) UploadResults(ctx context.Context, actor user.User, target UploadTarget, r io.Reader) (UploadSummary, error) {
	var summary UploadSummary
	if err := user.Authorize(actor, user.CanEnterResults); err != nil {
		return summary, err
	}
	if err := core.Validate.Struct(target); err != nil {
		return summary, err
	}
	p := academic.Period{SessionID: target.SessionID, TermID: target.TermID}
	if err := academic.CheckPeriod(ctx, svc.calendar, p); err != nil {
		return summary, err
	}
	class, err := svc.calendar.GetClass(ctx, target.ClassID)
	if err != nil {
		return summary, notFoundField(err, "class_id", academic.ErrClassNotFound)
	}
	if _, err = svc.calendar.GetSubject(ctx, target.SubjectID); err != nil {
		return summary, notFoundField(err, "subject_id", academic.ErrSubjectNotFound)
	}
	if len(class.SubjectIDs) > 0 && !class.HasSubject(target.SubjectID) {
		return summary, core.NewValidationError(ErrSubjectNotInClass, core.FieldError{Field: "subject_id", Error: ErrSubjectNotInClass.Error()})
	}
	a, err := svc.repo.GetAssessment(ctx, target.AssessmentID)
	if err != nil {
		return summary, notFoundField(err, "assessment_id", ErrAssessmentNotFound)
	}
	if !a.IsActive {
		return summary, core.NewValidationError(ErrAssessmentInactive, core.FieldError{Field: "assessment_id", Error: ErrAssessmentInactive.Error()})
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err == io.EOF {
		return summary, nil
	} else if err != nil {
		return summary, core.NewValidationError(errors.Wrap(err, "reading CSV header"))
	}
	cols := columnIndex(header)
	if _, ok := cols["admission_number"]; !ok {
		return summary, core.NewValidationError(errMissingColumns)
	}
	if _, ok := cols["score"]; !ok {
		return summary, core.NewValidationError(errMissingColumns)
	}

	now := core.NowFunc().UTC()
	err = svc.repo.WithinTx(ctx, func(tx Repository) error {
		for rowNum := 2; ; rowNum++ {
			record, err := reader.Read()
			if err == io.EOF {
				return nil
			} else if err != nil {
				var parseErr *csv.ParseError
				if !errors.As(err, &parseErr) {
					return errors.Wrap(err, "reading CSV")
				}
				summary.Errors = append(summary.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
				continue
			}

			admissionNumber := field(record, cols, "admission_number")
			rawScore := field(record, cols, "score")
			if admissionNumber == "" || rawScore == "" {
				continue
			}

			student, err := svc.profiles.GetStudentByAdmissionNumber(ctx, admissionNumber)
			if err == profile.ErrStudentNotFound {
				summary.Errors = append(summary.Errors, fmt.Sprintf("Row %d: Student with admission number '%s' not found.", rowNum, admissionNumber))
				continue
			} else if err != nil {
				return err
			}

			score, err := decimal.NewFromString(rawScore)
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("Row %d: Invalid score format '%s' for %s.", rowNum, rawScore, admissionNumber))
				continue
			}
			if score.IsNegative() || score.GreaterThan(a.MaxScore) {
				summary.Errors = append(summary.Errors, fmt.Sprintf(
					"Row %d: Invalid score '%s' for %s. Must be between 0 and %s.", rowNum, rawScore, admissionNumber, a.MaxScore.String()))
				continue
			}

			_, created, err := tx.UpsertStudentResult(ctx, StudentResult{
				StudentID:    student.ID,
				SubjectID:    target.SubjectID,
				SessionID:    target.SessionID,
				TermID:       target.TermID,
				AssessmentID: target.AssessmentID,
				ClassID:      target.ClassID,
				Score:        core.Round2(score),
				Remarks:      field(record, cols, "remarks"),
				EnteredBy:    actorID(actor),
				EnteredAt:    now,
			})
			if err != nil {
				return err
			}
			if created {
				summary.Created++
			} else {
				summary.Updated++
			}
		}
	})
	if err != nil {
		return UploadSummary{}, err
	}
	return summary, nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = core.CleanString(strings.TrimPrefix(h, "\ufeff"), true /* lower */)
		if _, ok := cols[h]; !ok {
			cols[h] = i
		}
	}
	return cols
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
