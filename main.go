package main

import "github.com/frahmantamala/upi-sandbox/cmd"

func main() {
	cmd.Execute()
}
