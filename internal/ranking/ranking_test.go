package ranking

import (
	"fmt"
	"testing"

	"github.com/pedrobots/bluebot-rental/internal/model"
)

func ordersFor(number string, count int) []model.Order {
	orders := make([]model.Order, 0, count)
	for i := 0; i < count; i++ {
		orders = append(orders, model.Order{WhatsAppNumber: number})
	}
	return orders
}

func TestBuild_TieBreakKeepsSeedOrder(t *testing.T) {
	settings := model.Settings{OwnerName: "Pedro Bots", OwnerNumber: "5599981175724"}
	resellers := []model.Reseller{
		{Name: "A", WhatsApp: "5511000000001"},
		{Name: "B", WhatsApp: "5511000000002"},
	}
	orders := ordersFor("5511000000001", 7)

	got := Build(settings, resellers, orders)

	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}

	// A(7) впереди по продажам; владелец(0) и B(0) равны, порядок посева:
	// владелец раньше B.
	if got[0].Name != "A" || got[0].Sales != 7 || got[0].Rank != model.RankSilver {
		t.Fatalf("entry 0 = %+v, want A with 7 sales and Prata", got[0])
	}
	if got[1].Name != "Pedro Bots" || got[1].Sales != 0 || got[1].Rank != model.RankOwner {
		t.Fatalf("entry 1 = %+v, want owner with 0 sales and Dono", got[1])
	}
	if got[2].Name != "B" || got[2].Sales != 0 || got[2].Rank != model.RankBronze {
		t.Fatalf("entry 2 = %+v, want B with 0 sales and Bronze", got[2])
	}
}

func TestBuild_Thresholds(t *testing.T) {
	tests := []struct {
		count int
		want  model.RankLevel
	}{
		{0, model.RankBronze},
		{4, model.RankBronze},
		{5, model.RankSilver},
		{9, model.RankSilver},
		{10, model.RankGold},
		{19, model.RankGold},
		{20, model.RankPlatinum},
		{49, model.RankPlatinum},
		{50, model.RankDiamond},
		{120, model.RankDiamond},
	}

	settings := model.Settings{OwnerName: "Dono", OwnerNumber: "5599900000000"}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("count=%d", tt.count), func(t *testing.T) {
			resellers := []model.Reseller{{Name: "R", WhatsApp: "5511000000009"}}
			got := Build(settings, resellers, ordersFor("5511000000009", tt.count))

			for _, entry := range got {
				if entry.Name == "R" {
					if entry.Rank != tt.want {
						t.Fatalf("rank for %d sales = %q, want %q", tt.count, entry.Rank, tt.want)
					}
					return
				}
			}
			t.Fatalf("reseller missing from leaderboard: %+v", got)
		})
	}
}

func TestBuild_OwnerRankForcedRegardlessOfCount(t *testing.T) {
	settings := model.Settings{OwnerName: "Dono", OwnerNumber: "5599900000000"}

	got := Build(settings, nil, ordersFor("5599900000000", 60))

	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if got[0].Rank != model.RankOwner || got[0].Sales != 60 {
		t.Fatalf("owner entry = %+v, want Dono with 60 sales", got[0])
	}
}

func TestBuild_UnknownNumberCountsForNoOne(t *testing.T) {
	settings := model.Settings{OwnerName: "Dono", OwnerNumber: "5599900000000"}
	resellers := []model.Reseller{{Name: "R", WhatsApp: "5511000000009"}}

	got := Build(settings, resellers, ordersFor("5522222222222", 12))

	for _, entry := range got {
		if entry.Sales != 0 {
			t.Fatalf("unknown order numbers must not affect counts: %+v", entry)
		}
	}
}

func TestBuild_NormalizesOrderNumbers(t *testing.T) {
	settings := model.Settings{OwnerName: "Dono", OwnerNumber: "5599900000000"}
	resellers := []model.Reseller{{Name: "R", WhatsApp: "5511000000009"}}

	orders := []model.Order{
		{WhatsAppNumber: "+55 (11) 00000-0009"},
		{WhatsAppNumber: "5511000000009"},
	}

	got := Build(settings, resellers, orders)

	for _, entry := range got {
		if entry.Name == "R" {
			if entry.Sales != 2 {
				t.Fatalf("sales = %d, want 2 after normalization", entry.Sales)
			}
			return
		}
	}
	t.Fatalf("reseller missing: %+v", got)
}

func TestBuild_OwnerCollisionOverwritesInPlace(t *testing.T) {
	settings := model.Settings{OwnerName: "Dono", OwnerNumber: "5599900000000"}
	resellers := []model.Reseller{
		{Name: "Sombra", WhatsApp: "5599900000000"},
		{Name: "B", WhatsApp: "5511000000002"},
	}

	got := Build(settings, resellers, ordersFor("5599900000000", 3))

	if len(got) != 2 {
		t.Fatalf("collision must leave a single bucket per key, got %d entries", len(got))
	}

	// Запись продавца перезаписала посеянного владельца: имя — продавца,
	// позиция и уровень Dono — от ключа владельца.
	if got[0].Name != "Sombra" || got[0].Sales != 3 || got[0].Rank != model.RankOwner {
		t.Fatalf("entry 0 = %+v, want overwritten owner bucket", got[0])
	}
}
