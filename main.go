package main

import "github.com/mirefly/docharbor/cmd"

func main() {
	cmd.Execute()
}
