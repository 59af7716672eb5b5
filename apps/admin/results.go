package main

import (
	"context"
	"os"

	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/results"
)

func (cli *commandLine) resultsCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}

	cmd := cli.newCommand("results " + args[0])
	sessionID := cmd.Int("session", 0, "Session ID.")
	termID := cmd.Int("term", 0, "Term ID.")
	classID := cmd.Int("class", 0, "Class ID.")
	studentID := cmd.Int("student", 0, "Student ID.")
	subjectID := cmd.Int("subject", 0, "Subject ID.")
	assessmentID := cmd.Int("assessment", 0, "Assessment ID.")
	score := cmd.String("score", "", "Score, for record.")
	remarks := cmd.String("remarks", "", "Remarks, for record.")
	file := cmd.String("file", "", "CSV file with admission_number,score[,remarks] rows, for upload.")
	sheetID := cmd.Int("id", 0, "Result sheet ID, for publish, unpublish and attendance.")
	present := cmd.Int("present", 0, "Days present, for attendance.")
	absent := cmd.Int("absent", 0, "Days absent, for attendance.")
	schoolDays := cmd.Int("days", 0, "School days in the term, for attendance.")
	if err := cmd.parse(args[1:]); err != nil {
		return err
	}
	actor, err := cli.actor(ctx, cmd)
	if err != nil {
		return err
	}
	period := academic.Period{SessionID: *sessionID, TermID: *termID}

	switch args[0] {
	case "record":
		if *score == "" {
			return cmd.usage()
		}
		nr := results.NewResult{
			StudentID:    *studentID,
			SubjectID:    *subjectID,
			SessionID:    *sessionID,
			TermID:       *termID,
			AssessmentID: *assessmentID,
			ClassID:      *classID,
			Remarks:      *remarks,
		}
		if nr.Score, err = parseAmount("score", *score); err != nil {
			return err
		}
		r, _, err := cli.results.RecordResult(ctx, actor, nr)
		if err != nil {
			return err
		}
		return cli.print(r)

	case "upload":
		if *file == "" {
			return cmd.usage()
		}
		f, err := os.Open(*file)
		if err != nil {
			return err
		}
		defer f.Close()

		target := results.UploadTarget{
			SessionID:    *sessionID,
			TermID:       *termID,
			SubjectID:    *subjectID,
			ClassID:      *classID,
			AssessmentID: *assessmentID,
		}
		summary, err := cli.results.UploadResults(ctx, actor, target, f)
		if err != nil {
			return err
		}
		return cli.print(struct {
			results.UploadSummary
			Preview []string `json:"error_preview"`
		}{summary, summary.Preview(5)})

	case "compile":
		trs, err := cli.results.CompileClassResults(ctx, actor, period, *classID)
		if err != nil {
			return err
		}
		return cli.print(trs)

	case "sheets":
		sheets, err := cli.results.GenerateResultSheets(ctx, actor, period, *classID)
		if err != nil {
			return err
		}
		return cli.print(sheets)

	case "publish", "unpublish":
		if *sheetID == 0 {
			return cmd.usage()
		}
		publish := cli.results.Publish
		if args[0] == "unpublish" {
			publish = cli.results.Unpublish
		}
		rs, err := publish(ctx, actor, *sheetID)
		if err != nil {
			return err
		}
		return cli.print(rs)

	case "attendance":
		if *sheetID == 0 {
			return cmd.usage()
		}
		rs, err := cli.results.SetAttendance(ctx, actor, *sheetID, results.Attendance{
			DaysPresent: *present,
			DaysAbsent:  *absent,
			SchoolDays:  *schoolDays,
		})
		if err != nil {
			return err
		}
		return cli.print(rs)

	default:
		cli.printUsage()
		return errHelp
	}
}
