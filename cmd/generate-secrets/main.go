package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/parkspot/payment-reconciler/internal/utils"
)

func main() {
	var (
		hashPassword bool
		bcryptCost   int
	)
	flag.BoolVar(&hashPassword, "hash-password", false, "read an admin password from stdin and print its bcrypt hash")
	flag.IntVar(&bcryptCost, "bcrypt-cost", 12, "bcrypt cost for -hash-password")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("Secret Generator for ParkSpot payment reconciler")
	fmt.Println("===========================================")
	fmt.Println()

	jwtSecret, err := utils.GenerateSecret(32)
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	fmt.Println("Add this to your .env file or deployment secrets:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)

	if hashPassword {
		fmt.Println()
		fmt.Print("Admin password: ")
		password, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && password == "" {
			log.Fatalf("Failed to read password: %v", err)
		}
		hash, err := utils.HashPassword(strings.TrimRight(password, "\r\n"), bcryptCost)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Printf("ADMIN_PASSWORD_HASH=%s\n", hash)
	}

	fmt.Println()
	fmt.Println("IMPORTANT: Keep these secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}
