package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/joho/godotenv"

	"xyzcredito.org/internal/domain"
	"xyzcredito.org/internal/ledger/remote"
	"xyzcredito.org/internal/taxid"
)

func main() {
	_ = godotenv.Load()

	base := flag.String("addr", envOr("XYZ_API_URL", "http://localhost:8080"), "API base URL")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, remote.New(*base)); err != nil {
		log.Fatalf("smoke: %v", err)
	}
	fmt.Println("smoke test passed")
}

func run(ctx context.Context, c *remote.Client) error {
	creditor, debtor := randomCPF(), randomCPF()
	for debtor == creditor {
		debtor = randomCPF()
	}

	if _, err := c.Register(ctx, "smoke creditor", creditor, "smoke"); err != nil {
		return fmt.Errorf("register creditor: %w", err)
	}
	me, _, err := c.Login(ctx, creditor, "smoke")
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer func() { _ = me.Logout(context.Background()) }()

	ch, err := me.CreateCharge(ctx, domain.EntityRef{Name: "smoke debtor", TaxID: debtor}, creditor, 4200)
	if err != nil {
		return fmt.Errorf("create charge: %w", err)
	}
	if !ch.IsActive {
		return errors.New("new charge is not active")
	}

	paid, err := me.SettleCharge(ctx, ch.ID, creditor)
	if err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	if paid.IsActive || paid.PaidAt == nil || paid.PaidAt.Before(paid.CreatedAt) {
		return fmt.Errorf("unexpected settled charge: %+v", paid)
	}

	if _, err := me.SettleCharge(ctx, ch.ID, creditor); !errors.Is(err, domain.ErrAlreadyPaid) {
		return fmt.Errorf("second settle: expected already paid, got %v", err)
	}
	return nil
}

func randomCPF() string {
	for {
		if cpf, ok := taxid.CompleteCPF(fmt.Sprintf("%09d", rand.IntN(1_000_000_000))); ok {
			return cpf
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
