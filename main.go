package main

import "github.com/frahmantamala/packpay/cmd"

func main() {
	cmd.Execute()
}
