package main

import "github.com/ValentinKolb/restrpc/cmd"

func main() {
	cmd.Execute()
}
