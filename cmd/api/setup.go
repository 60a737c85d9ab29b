package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mandalnilabja/ocrway/internal/storage"
	"github.com/mandalnilabja/ocrway/internal/transport/http/handler/shared"
)

// ensureAdminPassword stores the admin password hash on first start. A
// preset password is used when given, otherwise the operator is prompted.
func ensureAdminPassword(ctx context.Context, store storage.Storage, preset string) error {
	hasPassword, err := store.HasAdminPassword(ctx)
	if err != nil {
		return fmt.Errorf("failed to check admin password: %w", err)
	}
	if hasPassword {
		return nil
	}

	if preset != "" {
		if !shared.IsValidAdminPassword(preset) {
			return errors.New("ADMIN_PASSWORD must be alphanumeric with at least 8 characters")
		}
		return saveAdminPassword(ctx, store, preset)
	}

	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════════════════╗")
	fmt.Println("║              FIRST-TIME SETUP REQUIRED                     ║")
	fmt.Println("╚════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("No admin password configured. Please set one now.")
	fmt.Println("This password protects the Admin API.")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("Enter admin password (alphanumeric, min 8 chars): ")
		password, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimSpace(password)

		if !shared.IsValidAdminPassword(password) {
			fmt.Println("❌ Password must be alphanumeric with at least 8 characters.")
			fmt.Println()
			continue
		}

		fmt.Print("Confirm password: ")
		confirm, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		confirm = strings.TrimSpace(confirm)

		if password != confirm {
			fmt.Println("❌ Passwords do not match. Please try again.")
			fmt.Println()
			continue
		}

		if err := saveAdminPassword(ctx, store, password); err != nil {
			return err
		}

		fmt.Println()
		fmt.Println("✓ Admin password saved successfully!")
		fmt.Println()
		return nil
	}
}

func saveAdminPassword(ctx context.Context, store storage.Storage, password string) error {
	hash, err := storage.HashPassword(password, storage.DefaultPasswordParams())
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := store.SetAdminPasswordHash(ctx, hash); err != nil {
		return fmt.Errorf("failed to save password: %w", err)
	}
	return nil
}
