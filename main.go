package main

import (
	"github.com/tanpawarit/chative-crm/cmd"
	_ "github.com/tanpawarit/chative-crm/pkg/logger/autoload"
)

func main() {
	cmd.Execute()
}
