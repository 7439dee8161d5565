// Package ranking вычисляет таблицу лидеров продавцов по истории заказов.
package ranking

import (
	"sort"

	"github.com/pedrobots/bluebot-rental/internal/model"
	"github.com/pedrobots/bluebot-rental/internal/validation"
)

// Пороговые значения уровней по числу продаж. Проверяются от большего к меньшему.
const (
	diamondThreshold  = 50
	platinumThreshold = 20
	goldThreshold     = 10
	silverThreshold   = 5
)

// Build строит таблицу лидеров: владелец и продавцы из ростера с числом
// совпавших заказов и уровнем. Чистая функция без побочных эффектов,
// пересчитывается при каждом обращении.
//
// Посев идёт в фиксированном порядке: сначала владелец, затем продавцы в
// порядке ростера. Если ключ продавца совпадает с уже посеянным, запись
// перезаписывается на месте: выживает один счётчик на ключ, позиция сохраняется.
// Заказы с номером, не совпавшим ни с одним ключом, никому не засчитываются.
// Сортировка — по убыванию продаж; при равенстве сохраняется порядок посева.
func Build(settings model.Settings, resellers []model.Reseller, orders []model.Order) []model.RankedReseller {
	type bucket struct {
		key   string
		name  string
		count int
	}

	var seeded []*bucket
	index := make(map[string]*bucket)

	seed := func(key, name string) {
		if b, ok := index[key]; ok {
			b.name = name
			b.count = 0
			return
		}
		b := &bucket{key: key, name: name}
		index[key] = b
		seeded = append(seeded, b)
	}

	ownerKey := validation.NormalizePhone(settings.OwnerNumber)
	seed(ownerKey, settings.OwnerName)
	for _, r := range resellers {
		seed(validation.NormalizePhone(r.WhatsApp), r.Name)
	}

	for _, o := range orders {
		if b, ok := index[validation.NormalizePhone(o.WhatsAppNumber)]; ok {
			b.count++
		}
	}

	result := make([]model.RankedReseller, 0, len(seeded))
	for _, b := range seeded {
		result = append(result, model.RankedReseller{
			WhatsApp: b.key,
			Name:     b.name,
			Sales:    b.count,
			Rank:     rankFor(b.key == ownerKey, b.count),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Sales > result[j].Sales
	})

	return result
}

// rankFor возвращает уровень по числу продаж. Ключ владельца всегда получает
// RankOwner независимо от счётчика.
func rankFor(owner bool, count int) model.RankLevel {
	switch {
	case owner:
		return model.RankOwner
	case count >= diamondThreshold:
		return model.RankDiamond
	case count >= platinumThreshold:
		return model.RankPlatinum
	case count >= goldThreshold:
		return model.RankGold
	case count >= silverThreshold:
		return model.RankSilver
	default:
		return model.RankBronze
	}
}
