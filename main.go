package main

import (
	_ "net/http/pprof"

	"github.com/agent001/UNCALLED/cmd"
)

func main() {
	cmd.Execute() // initialize cobra commands
}
