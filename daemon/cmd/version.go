package cmd

import (
	"fmt"

	"go.ntppool.org/common/version"
)

type versionCmd struct{}

func (cmd *versionCmd) Run() error {
	fmt.Printf("tablerank %s\n", version.Version())
	return nil
}
