package main

import (
	"context"

	"github.com/Rwiron/saintmassori-sub002/core/user"
)

// addUser creates the staff account, or reactivates it with the new password.
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	var roles []string
	if isAdmin {
		roles = user.AllRoles
	}
	usr, err := cli.usrSvc.AddOrUpdate(context.Background(), uname, email, pwd, roles)
	if err != nil {
		return err
	}
	cli.printf("user %q saved\n", usr.Username)
	return nil
}
