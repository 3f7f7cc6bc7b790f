package main

import "github.com/ValentinKolb/dCap/cmd"

func main() {
	cmd.Execute()
}
