package main

import (
	"github.com/CompassSecurity/codechecker/internal/cmd"
	"github.com/CompassSecurity/codechecker/internal/cmd/common"
)

func main() {
	common.Run(cmd.NewRootCmd())
}
