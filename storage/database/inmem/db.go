package inmemdb

import (
	"context"
	"sync"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/academic"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
	"github.com/Rwiron/saintmassori-sub002/core/school"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
	"github.com/Rwiron/saintmassori-sub002/core/user"
)

type (
	// DB is an in-memory store implementing every repository of the app.
	// Repositories ignore the DBExecutor they are given; atomicity comes from DB.WithinTx.
	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex
		tables
	}

	tables struct {
		users        map[string]user.User
		years        map[string]academic.AcademicYear
		terms        map[string]academic.Term
		grades       map[string]school.Grade
		classes      map[string]school.Class
		students     map[string]school.Student
		tariffs      map[string]tariff.Tariff
		classTariffs map[classTariffKey]tariff.ClassTariff
		bills        map[string]billing.Bill
		billItems    map[string]billing.BillItem
		payments     map[string]billing.Payment
		itemPayments []billing.ItemPayment
		counters     map[counterKey]billing.Counter
	}

	classTariffKey struct{ classID, tariffID string }
	counterKey     struct{ yearID, termID string }
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() tables {
	return tables{
		users:        make(map[string]user.User),
		years:        make(map[string]academic.AcademicYear),
		terms:        make(map[string]academic.Term),
		grades:       make(map[string]school.Grade),
		classes:      make(map[string]school.Class),
		students:     make(map[string]school.Student),
		tariffs:      make(map[string]tariff.Tariff),
		classTariffs: make(map[classTariffKey]tariff.ClassTariff),
		bills:        make(map[string]billing.Bill),
		billItems:    make(map[string]billing.BillItem),
		payments:     make(map[string]billing.Payment),
		counters:     make(map[counterKey]billing.Counter),
	}
}

// Reset drops all the data.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables = newTables()
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.years {
		c.years[k] = v
	}
	for k, v := range t.terms {
		c.terms[k] = v
	}
	for k, v := range t.grades {
		c.grades[k] = v
	}
	for k, v := range t.classes {
		c.classes[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.tariffs {
		c.tariffs[k] = v
	}
	for k, v := range t.classTariffs {
		c.classTariffs[k] = v
	}
	for k, v := range t.bills {
		c.bills[k] = v
	}
	for k, v := range t.billItems {
		c.billItems[k] = v
	}
	for k, v := range t.payments {
		c.payments[k] = v
	}
	c.itemPayments = append(c.itemPayments, t.itemPayments...)
	for k, v := range t.counters {
		c.counters[k] = v
	}
	return c
}

// WithinTx serializes units of work and restores the tables' state when fn fails or panics.
func (db *DB) WithinTx(_ context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.tables.clone()
	db.mu.RUnlock()

	rollback := func() {
		db.mu.Lock()
		db.tables = snapshot
		db.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(nil); err != nil {
		rollback()
	}
	return err
}
