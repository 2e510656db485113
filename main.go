package main

import "github.com/ValentinKolb/nvboot/cmd"

func main() {
	cmd.Execute()
}
