package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mahaj/chatter-box/pkg/model"
)

type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create inserts room together with its initial members. Duplicate member ids
// are collapsed.
func (r *RoomRepository) Create(ctx context.Context, room *model.Room, members []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrRoomNameTaken
			}
			return fmt.Errorf("create room: %w", err)
		}
		rows := memberRows(room.ID, members)
		if len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return fmt.Errorf("add members: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	room.Members = uniqueIDs(members)
	return nil
}

func (r *RoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find room: %w", err)
	}
	rooms := []model.Room{room}
	if err := r.loadMembers(ctx, rooms); err != nil {
		return nil, err
	}
	return &rooms[0], nil
}

func (r *RoomRepository) List(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	if err := r.db.WithContext(ctx).Order("created_at").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, r.loadMembers(ctx, rooms)
}

// ListForMember returns the rooms userID belongs to.
func (r *RoomRepository) ListForMember(ctx context.Context, userID string) ([]model.Room, error) {
	var rooms []model.Room
	err := r.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("rooms.created_at").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("list member rooms: %w", err)
	}
	return rooms, r.loadMembers(ctx, rooms)
}

// AddMember adds userID to the room. Joining twice is a no-op.
func (r *RoomRepository) AddMember(ctx context.Context, roomID, userID string) (*model.Room, error) {
	if _, err := r.FindByID(ctx, roomID); err != nil {
		return nil, err
	}
	row := model.RoomMember{RoomID: roomID, UserID: userID, JoinedAt: time.Now()}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	}
	return r.FindByID(ctx, roomID)
}

// IsMember implements realtime.RoomAuthorizer.
func (r *RoomRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return count > 0, nil
}

// Delete removes the room, its memberships and its messages.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Room{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete room: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Delete(&model.RoomMember{}, "room_id = ?", id).Error; err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
		if err := tx.Delete(&model.Message{}, "room_id = ?", id).Error; err != nil {
			return fmt.Errorf("delete room messages: %w", err)
		}
		return nil
	})
}

func (r *RoomRepository) loadMembers(ctx context.Context, rooms []model.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	ids := make([]string, len(rooms))
	idx := make(map[string]int, len(rooms))
	for i := range rooms {
		ids[i] = rooms[i].ID
		idx[rooms[i].ID] = i
		rooms[i].Members = []string{}
	}

	var rows []model.RoomMember
	err := r.db.WithContext(ctx).
		Where("room_id IN ?", ids).
		Order("joined_at, user_id").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	for _, row := range rows {
		i := idx[row.RoomID]
		rooms[i].Members = append(rooms[i].Members, row.UserID)
	}
	return nil
}

func memberRows(roomID string, members []string) []model.RoomMember {
	now := time.Now()
	ids := uniqueIDs(members)
	rows := make([]model.RoomMember, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, model.RoomMember{RoomID: roomID, UserID: id, JoinedAt: now})
	}
	return rows
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
