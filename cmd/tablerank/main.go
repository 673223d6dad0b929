package main

import (
	basecmd "go.ntppool.org/tablerank/cmd"
	"go.ntppool.org/tablerank/daemon/cmd"
)

func main() {
	basecmd.Run(&cmd.TablerankCmd{}, "tablerank", cmd.Description)
}
