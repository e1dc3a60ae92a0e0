// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/accountd/internal/store"
)

func tableExists(name string) bool {
	var exists bool
	err := testDB.Pool.QueryRow(context.Background(),
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, name).
		Scan(&exists)
	Expect(err).NotTo(HaveOccurred())
	return exists
}

var _ = Describe("Migrator", Ordered, func() {
	var migrator *store.Migrator

	BeforeAll(func() {
		var err error
		migrator, err = store.NewMigrator(testDB.URL)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { Expect(migrator.Close()).To(Succeed()) })
	})

	It("starts at version zero with everything pending", func() {
		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Current).To(BeZero())
		Expect(status.Pending).To(HaveLen(2))
	})

	It("applies all migrations", func() {
		Expect(migrator.Up()).To(Succeed())

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(2)))
		Expect(dirty).To(BeFalse())
		Expect(tableExists("accounts")).To(BeTrue())
		Expect(tableExists("session_cache")).To(BeTrue())
	})

	It("is idempotent", func() {
		Expect(migrator.Up()).To(Succeed())
	})

	It("enforces unique account numbers", func() {
		ctx := context.Background()
		insert := `INSERT INTO accounts (id, user_name, email_address, identity_number, account_number, password_hash)
			VALUES ($1, $2, $3, $4, '1234567890', 'h')`
		_, err := testDB.Pool.Exec(ctx, insert, "a", "first", "f@x.com", "1111111111111111")
		Expect(err).NotTo(HaveOccurred())
		_, err = testDB.Pool.Exec(ctx, insert, "b", "second", "s@x.com", "2222222222222222")
		Expect(err).To(MatchError(ContainSubstring("accounts_account_number_key")))
		_, err = testDB.Pool.Exec(ctx, `DELETE FROM accounts`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("steps down one migration", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		Expect(tableExists("session_cache")).To(BeFalse())
		Expect(tableExists("accounts")).To(BeTrue())
	})

	It("rolls everything back", func() {
		Expect(migrator.Down()).To(Succeed())
		Expect(tableExists("accounts")).To(BeFalse())

		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
	})
})
