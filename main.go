// Command reposcan scans repositories of any size for secrets.
package main

import (
	"github.com/huangsam/reposcan/cmd"
	"github.com/huangsam/reposcan/internal/contract"
)

func main() {
	if err := cmd.Execute(); err != nil {
		contract.LogFatal("Command failed", err)
	}
}
