package main

import "github.com/mselser95/portfolio-sync/cmd"

func main() {
	cmd.Execute()
}
