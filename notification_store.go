package main

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidRecord is returned for a notification with an out-of-range field.
var ErrInvalidRecord = errors.New("invalid notification record")

// NotificationRecord is one weekly reminder owned by a user.
type NotificationRecord struct {
	Hour      int       `json:"hour"`
	Minute    int       `json:"minute"`
	Weekdays  []int     `json:"weekdays"`
	ChannelID Snowflake `json:"channel_id"`
}

func (r NotificationRecord) validate() error {
	if r.Hour < 0 || r.Hour > 23 {
		return fmt.Errorf("%w: hour %d", ErrInvalidRecord, r.Hour)
	}
	if r.Minute < 0 || r.Minute > 59 {
		return fmt.Errorf("%w: minute %d", ErrInvalidRecord, r.Minute)
	}
	if len(r.Weekdays) == 0 {
		return fmt.Errorf("%w: no weekdays", ErrInvalidRecord)
	}
	for _, d := range r.Weekdays {
		if d < 1 || d > 7 {
			return fmt.Errorf("%w: weekday %d", ErrInvalidRecord, d)
		}
	}
	if r.ChannelID == "" {
		return fmt.Errorf("%w: no channel", ErrInvalidRecord)
	}
	return nil
}

func (r NotificationRecord) trigger() WeeklyTrigger {
	return WeeklyTrigger{Weekdays: append([]int(nil), r.Weekdays...), Hour: r.Hour, Minute: r.Minute}
}

// NotificationStore is notification.json: user id → message → record.
type NotificationStore struct {
	store *jsonStore
}

func openNotificationStore(path string) (*NotificationStore, error) {
	s, err := openJSONStore(path, nil)
	if err != nil {
		return nil, fmt.Errorf("notification store: %w", err)
	}
	return &NotificationStore{store: s}, nil
}

func userRecords(tx *storeTx, user string) (map[string]NotificationRecord, error) {
	recs := map[string]NotificationRecord{}
	if _, err := tx.get(user, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Put stores (or replaces) the record for user/message.
func (n *NotificationStore) Put(user, message string, rec NotificationRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}
	return n.store.update(func(tx *storeTx) error {
		recs, err := userRecords(tx, user)
		if err != nil {
			return err
		}
		recs[message] = rec
		return tx.set(user, recs)
	})
}

// Get returns the stored record, re-reading the file first.
func (n *NotificationStore) Get(user, message string) (NotificationRecord, bool, error) {
	var (
		rec   NotificationRecord
		found bool
	)
	err := n.store.view(func(tx *storeTx) error {
		recs, err := userRecords(tx, user)
		if err != nil {
			return err
		}
		rec, found = recs[message]
		return nil
	})
	return rec, found, err
}

// UserIDs returns every user with stored records.
func (n *NotificationStore) UserIDs() ([]string, error) {
	var ids []string
	err := n.store.view(func(tx *storeTx) error {
		ids = tx.keys()
		return nil
	})
	return ids, err
}

// Messages returns the user's message keys in sorted order.
func (n *NotificationStore) Messages(user string) ([]string, error) {
	var out []string
	err := n.store.view(func(tx *storeTx) error {
		recs, err := userRecords(tx, user)
		if err != nil {
			return err
		}
		for m := range recs {
			out = append(out, m)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// Delete removes the record. A user left without records is removed too.
// Deleting a missing record is a no-op.
func (n *NotificationStore) Delete(user, message string) error {
	return n.store.update(func(tx *storeTx) error {
		recs, err := userRecords(tx, user)
		if err != nil {
			return err
		}
		if _, ok := recs[message]; !ok {
			return nil
		}
		delete(recs, message)
		if len(recs) == 0 {
			tx.delete(user)
			return nil
		}
		return tx.set(user, recs)
	})
}
