package main

import (
	"context"

	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/results"
)

func (cli *commandLine) addSession(ctx context.Context, args []string) error {
	cmd := cli.newCommand("session")
	name := cmd.String("name", "", "Session name, e.g. 2024/2025.")
	start := cmd.String("start", "", "Start date (YYYY-MM-DD).")
	end := cmd.String("end", "", "End date (YYYY-MM-DD).")
	current := cmd.Bool("current", false, "Make it the current session.")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if *name == "" {
		return cmd.usage()
	}
	actor, err := cli.actor(ctx, cmd)
	if err != nil {
		return err
	}

	ns := academic.NewSession{Name: *name}
	if ns.StartDate, err = parseDate("start", *start); err != nil {
		return err
	}
	if ns.EndDate, err = parseDate("end", *end); err != nil {
		return err
	}
	s, err := cli.calendar.CreateSession(ctx, actor, ns)
	if err != nil {
		return err
	}
	if *current {
		if s, err = cli.calendar.SetCurrentSession(ctx, actor, s.ID); err != nil {
			return err
		}
	}
	return cli.print(s)
}

func (cli *commandLine) addTerm(ctx context.Context, args []string) error {
	cmd := cli.newCommand("term")
	sessionID := cmd.Int("session", 0, "Session ID.")
	name := cmd.String("name", "", "One of first, second, third.")
	start := cmd.String("start", "", "Start date (YYYY-MM-DD).")
	end := cmd.String("end", "", "End date (YYYY-MM-DD).")
	current := cmd.Bool("current", false, "Make it the current term of its session.")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if *sessionID == 0 || *name == "" {
		return cmd.usage()
	}
	actor, err := cli.actor(ctx, cmd)
	if err != nil {
		return err
	}

	nt := academic.NewTerm{SessionID: *sessionID, Name: *name}
	if nt.StartDate, err = parseDate("start", *start); err != nil {
		return err
	}
	if nt.EndDate, err = parseDate("end", *end); err != nil {
		return err
	}
	t, err := cli.calendar.CreateTerm(ctx, actor, nt)
	if err != nil {
		return err
	}
	if *current {
		if t, err = cli.calendar.SetCurrentTerm(ctx, actor, t.ID); err != nil {
			return err
		}
	}
	return cli.print(t)
}

func (cli *commandLine) addSubject(ctx context.Context, args []string) error {
	cmd := cli.newCommand("subject")
	name := cmd.String("name", "", "Subject name.")
	code := cmd.String("code", "", "Unique subject code.")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if *name == "" || *code == "" {
		return cmd.usage()
	}
	actor, err := cli.actor(ctx, cmd)
	if err != nil {
		return err
	}

	s, err := cli.calendar.CreateSubject(ctx, actor, academic.NewSubject{Name: *name, Code: *code})
	if err != nil {
		return err
	}
	return cli.print(s)
}

func (cli *commandLine) addClass(ctx context.Context, args []string) error {
	cmd := cli.newCommand("class")
	name := cmd.String("name", "", "Class name, e.g. JSS1A.")
	level := cmd.String("level", "", "Class level.")
	subjects := cmd.String("subjects", "", "Comma-separated subject IDs offered by the class.")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if *name == "" {
		return cmd.usage()
	}
	subjectIDs, err := parseIDs(*subjects)
	if err != nil {
		return err
	}
	actor, err := cli.actor(ctx, cmd)
	if err != nil {
		return err
	}

	c, err := cli.calendar.CreateClass(ctx, actor, academic.NewClass{Name: *name, Level: *level})
	if err != nil {
		return err
	}
	if len(subjectIDs) > 0 {
		if c, err = cli.calendar.AssignSubjects(ctx, actor, c.ID, subjectIDs...); err != nil {
			return err
		}
	}
	return cli.print(c)
}

// assessment creates an assessment, or toggles an existing one with -id.
func (cli *commandLine) assessment(ctx context.Context, args []string) error {
	cmd := cli.newCommand("assessment")
	id := cmd.Int("id", 0, "Existing assessment ID to (de)activate.")
	active := cmd.Bool("active", true, "Active flag, used with -id.")
	name := cmd.String("name", "", "Assessment name.")
	typ := cmd.String("type", "", "One of ca1, ca2, ca3, exam, assignment, project, practical.")
	maxScore := cmd.String("max", "100", "Max score.")
	weight := cmd.String("weight", "", "Weight percentage.")
	if err := cmd.parse(args); err != nil {
		return err
	}
	actor, err := cli.actor(ctx, cmd)
	if err != nil {
		return err
	}

	if *id != 0 {
		a, err := cli.results.SetAssessmentActive(ctx, actor, *id, *active)
		if err != nil {
			return err
		}
		return cli.print(a)
	}
	if *name == "" || *typ == "" || *weight == "" {
		return cmd.usage()
	}

	na := results.NewAssessment{Name: *name, Type: *typ}
	if na.MaxScore, err = parseAmount("max", *maxScore); err != nil {
		return err
	}
	if na.WeightPercentage, err = parseAmount("weight", *weight); err != nil {
		return err
	}
	a, err := cli.results.CreateAssessment(ctx, actor, na)
	if err != nil {
		return err
	}
	return cli.print(a)
}
