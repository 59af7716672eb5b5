package main

import (
	"context"

	"github.com/gladschool/portal/core/profile"
	"github.com/gladschool/portal/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, args []string) error {
	cmd := cli.newCommand("adduser")
	name := cmd.String("name", "", "Full name.")
	uname := cmd.String("username", "", "Username.")
	email := cmd.String("email", "", "Email address.")
	role := cmd.String("role", user.RoleStaff, "One of student, staff, accountant, admin, it_support.")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if *uname == "" || *name == "" {
		return cmd.usage()
	}

	usr, err := cli.users.Save(ctx, user.NewUser{Name: *name, Username: *uname, Email: *email, Role: *role})
	if err != nil {
		return err
	}
	return cli.print(usr)
}

func (cli *commandLine) addStudent(ctx context.Context, args []string) error {
	cmd := cli.newCommand("student")
	admission := cmd.String("admission", "", "Admission number.")
	first := cmd.String("first", "", "First name.")
	last := cmd.String("last", "", "Last name.")
	email := cmd.String("email", "", "Email address for receipts and result notices.")
	classID := cmd.Int("class", 0, "Class ID.")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if *admission == "" {
		return cmd.usage()
	}

	s, err := profile.ImportStudent(ctx, cli.profiles, profile.NewStudent{
		AdmissionNumber: *admission,
		FirstName:       *first,
		LastName:        *last,
		Email:           *email,
		ClassID:         *classID,
	})
	if err != nil {
		return err
	}
	return cli.print(s)
}

func (cli *commandLine) addStaff(ctx context.Context, args []string) error {
	cmd := cli.newCommand("staff")
	number := cmd.String("number", "", "Staff number.")
	name := cmd.String("name", "", "Full name.")
	email := cmd.String("email", "", "Email address.")
	position := cmd.String("position", "", "Position.")
	if err := cmd.parse(args); err != nil {
		return err
	}
	if *number == "" {
		return cmd.usage()
	}

	s, err := profile.ImportStaff(ctx, cli.profiles, profile.NewStaff{StaffNumber: *number, Name: *name, Email: *email, Position: *position})
	if err != nil {
		return err
	}
	return cli.print(s)
}
