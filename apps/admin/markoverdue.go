package main

import (
	"context"
)

func (cli *commandLine) markOverdue() error {
	n, err := cli.billing.MarkOverdue(context.Background())
	if err != nil {
		return err
	}
	cli.printf("%d bill(s) marked overdue\n", n)
	return nil
}
