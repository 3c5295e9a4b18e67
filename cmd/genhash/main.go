// cmd/genhash/main.go — Genera el hash bcrypt del PIN de supervisor para
// SUPERVISOR_PIN_HASH.
package main

import (
	"flag"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	pin := flag.String("pin", "1234", "PIN de supervisor")
	flag.Parse()

	h, err := bcrypt.GenerateFromPassword([]byte(*pin), 12)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(h))
}
