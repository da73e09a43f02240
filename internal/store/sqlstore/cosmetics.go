package sqlstore

import (
	"context"
	"time"

	"github.com/thomasnguyen/corgi-quest/internal/model"
)

type cosmetics struct{ s *Store }

const cosmeticColumns = `item_id, name, description, element_type, unlock_level, art_prompt`

func scanCosmetic(row interface{ Scan(...interface{}) error }) (*model.CosmeticItem, error) {
	var c model.CosmeticItem
	var et string
	if err := row.Scan(&c.ItemID, &c.Name, &c.Description, &et, &c.UnlockLevel, &c.ArtPrompt); err != nil {
		return nil, err
	}
	c.ElementType = model.ElementType(et)
	return &c, nil
}

func (c *cosmetics) list(ctx context.Context, q string, args ...interface{}) ([]*model.CosmeticItem, error) {
	rows, err := c.s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.CosmeticItem
	for rows.Next() {
		item, err := scanCosmetic(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, item)
	}
	return res, rows.Err()
}

func (c *cosmetics) ListItems(ctx context.Context) ([]*model.CosmeticItem, error) {
	return c.list(ctx, `SELECT `+cosmeticColumns+` FROM cosmetic_items ORDER BY unlock_level ASC, item_id ASC`)
}

func (c *cosmetics) GetItem(ctx context.Context, itemID string) (*model.CosmeticItem, error) {
	out, err := scanCosmetic(c.s.queryRow(ctx, `SELECT `+cosmeticColumns+` FROM cosmetic_items WHERE item_id=?`, itemID))
	if err != nil {
		return nil, notFound(err, "cosmeticItem", itemID)
	}
	return out, nil
}

func (c *cosmetics) UnlockedBetween(ctx context.Context, fromLevel, toLevel int) ([]*model.CosmeticItem, error) {
	if toLevel <= fromLevel {
		return nil, nil
	}
	return c.list(ctx, `
        SELECT `+cosmeticColumns+` FROM cosmetic_items
        WHERE unlock_level > ? AND unlock_level <= ?
        ORDER BY unlock_level ASC, item_id ASC
    `, fromLevel, toLevel)
}

func (c *cosmetics) GetEquipped(ctx context.Context, dogID string) (*model.EquippedItem, error) {
	var out model.EquippedItem
	row := c.s.queryRow(ctx, `SELECT dog_id, item_id, image_url, update_time FROM equipped_items WHERE dog_id=?`, dogID)
	if err := row.Scan(&out.DogID, &out.ItemID, &out.ImageURL, &out.UpdateTime); err != nil {
		return nil, notFound(err, "equippedItem", dogID)
	}
	return &out, nil
}

func (c *cosmetics) Equip(ctx context.Context, e *model.EquippedItem) error {
	ut := e.UpdateTime
	if ut.IsZero() {
		ut = time.Now().UTC()
	}
	_, err := c.s.exec(ctx, `
        INSERT INTO equipped_items (dog_id, item_id, image_url, update_time)
        VALUES (?,?,?,?)
        ON CONFLICT (dog_id) DO UPDATE SET
            item_id     = excluded.item_id,
            image_url   = excluded.image_url,
            update_time = excluded.update_time
    `, e.DogID, e.ItemID, e.ImageURL, ut.UTC())
	return err
}

func (c *cosmetics) Unequip(ctx context.Context, dogID string) error {
	return c.s.execOne(ctx, "equippedItem", dogID, `DELETE FROM equipped_items WHERE dog_id=?`, dogID)
}

func (c *cosmetics) SetEquippedImage(ctx context.Context, dogID, itemID, imageURL string) (bool, error) {
	res, err := c.s.exec(ctx, `
        UPDATE equipped_items SET image_url=?, update_time=? WHERE dog_id=? AND item_id=?
    `, imageURL, time.Now().UTC(), dogID, itemID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
