package models

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShareStatusFor(t *testing.T) {
	amount := MustMoney("33.34")

	assert.Equal(t, SharePending, ShareStatusFor(amount, ZeroMoney()))
	assert.Equal(t, SharePartial, ShareStatusFor(amount, MustMoney("10.00")))
	assert.Equal(t, ShareCompleted, ShareStatusFor(amount, amount))
}

func TestShareStatusForRandomized(t *testing.T) {
	moneyFromCents := func(cents int64) Money {
		return MustMoney(fmt.Sprintf("%d.%02d", cents/100, cents%100))
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		amountCents := rng.Int63n(100000) + 1
		paidCents := rng.Int63n(amountCents + 1)

		amount := moneyFromCents(amountCents)
		paid := moneyFromCents(paidCents)

		want := SharePartial
		switch {
		case paidCents == 0:
			want = SharePending
		case paidCents == amountCents:
			want = ShareCompleted
		}
		assert.Equal(t, want, ShareStatusFor(amount, paid),
			"amount=%s paid=%s", amount, paid)
	}
}

func TestShareRemaining(t *testing.T) {
	share := &Share{Amount: MustMoney("33.34"), AmountPaid: MustMoney("10.00")}
	assert.Equal(t, "23.34", share.Remaining().String())

	share.AmountPaid = share.Amount
	assert.True(t, share.Remaining().IsZero())
}
