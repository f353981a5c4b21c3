// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package iconsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/godbus/dbus/v5"
)

// AccountsService names.
const (
	accountsService    = "org.freedesktop.Accounts"
	accountsUserPrefix = "/org/freedesktop/Accounts/User"
	accountsUser       = "org.freedesktop.Accounts.User"
	propertiesGet      = "org.freedesktop.DBus.Properties.Get"
	iconFileProperty   = "IconFile"
	setIconFileMethod  = accountsUser + ".SetIconFile"
	errorUnknownObject = "org.freedesktop.DBus.Error.UnknownObject"
	errorUnknownIface  = "org.freedesktop.DBus.Error.UnknownInterface"
	errorUnknownMethod = "org.freedesktop.DBus.Error.UnknownMethod"
	errorUnknownProp   = "org.freedesktop.DBus.Error.UnknownProperty"
	errorUserNotExist  = "org.freedesktop.Accounts.Error.UserDoesNotExist"
)

// unknownUserErrors are D-Bus error names meaning AccountsService has
// no icon endpoint for the uid.
var unknownUserErrors = map[string]bool{
	errorUnknownObject: true,
	errorUnknownIface:  true,
	errorUnknownMethod: true,
	errorUnknownProp:   true,
	errorUserNotExist:  true,
}

// AccountsStore is an IconStore backed by AccountsService.
type AccountsStore struct {
	conn *dbus.Conn
}

// ConnectAccounts connects to the system bus.
func ConnectAccounts() (*AccountsStore, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("iconsync: connecting to system bus: %w", err)
	}
	return &AccountsStore{conn: conn}, nil
}

// NewAccountsStore wraps an existing bus connection.
func NewAccountsStore(conn *dbus.Conn) *AccountsStore {
	return &AccountsStore{conn: conn}
}

// Close closes the bus connection.
func (s *AccountsStore) Close() error { return s.conn.Close() }

// userObjectPath returns the AccountsService object for uid. Non-numeric
// uids cannot name an account.
func userObjectPath(uid string) (dbus.ObjectPath, error) {
	if _, err := strconv.ParseUint(uid, 10, 32); err != nil {
		return "", fmt.Errorf("uid %q: %w", uid, ErrUnknownUser)
	}
	return dbus.ObjectPath(accountsUserPrefix + uid), nil
}

// IconPath implements IconStore.
func (s *AccountsStore) IconPath(ctx context.Context, uid string) (string, error) {
	path, err := userObjectPath(uid)
	if err != nil {
		return "", err
	}
	var value dbus.Variant
	err = s.conn.Object(accountsService, path).
		CallWithContext(ctx, propertiesGet, 0, accountsUser, iconFileProperty).
		Store(&value)
	if err != nil {
		return "", classify(uid, err)
	}
	icon, ok := value.Value().(string)
	if !ok {
		return "", fmt.Errorf("iconsync: uid %s: IconFile has type %s", uid, value.Signature())
	}
	return icon, nil
}

// SetIconPath implements IconStore.
func (s *AccountsStore) SetIconPath(ctx context.Context, uid, iconPath string) error {
	path, err := userObjectPath(uid)
	if err != nil {
		return err
	}
	call := s.conn.Object(accountsService, path).CallWithContext(ctx, setIconFileMethod, 0, iconPath)
	if call.Err != nil {
		return classify(uid, call.Err)
	}
	return nil
}

// classify maps D-Bus "no such account" errors to ErrUnknownUser.
func classify(uid string, err error) error {
	name := ""
	var value dbus.Error
	var pointer *dbus.Error
	switch {
	case errors.As(err, &value):
		name = value.Name
	case errors.As(err, &pointer):
		name = pointer.Name
	}
	if unknownUserErrors[name] {
		return fmt.Errorf("uid %s: %s: %w", uid, name, ErrUnknownUser)
	}
	return fmt.Errorf("iconsync: uid %s: %w", uid, err)
}
