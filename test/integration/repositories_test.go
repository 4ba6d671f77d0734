//go:build integration

package integration_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"go-identity/internal/model"
)

var _ = Describe("Credential store", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		truncateAll(ctx)
	})

	Describe("Users", func() {
		It("finds users by normalized email", func() {
			u := createTestUser(ctx, "Ana@Example.com")

			got, err := env.Users.FindByEmail(ctx, "  ana@EXAMPLE.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(u.ID))
			Expect(got.Email).To(Equal("ana@example.com"))
		})

		It("rejects duplicate emails", func() {
			createTestUser(ctx, "ana@example.com")

			err := env.Users.Create(ctx, model.User{ID: "00000000-0000-0000-0000-000000000001", Email: "ANA@example.com", Name: "Dup", PasswordHash: "x"})
			Expect(err).To(MatchError(model.ErrUserAlreadyExists))
		})

		It("locks the account after repeated failures and clears it on success", func() {
			u := createTestUser(ctx, "ana@example.com")
			until := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Microsecond)

			for i := 0; i < 3; i++ {
				Expect(env.Users.RecordLoginFailure(ctx, u.ID, 3, until)).To(Succeed())
			}

			got, err := env.Users.FindByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.LockedUntil).NotTo(BeNil())
			Expect(got.LockedUntil.Equal(until)).To(BeTrue())
			Expect(got.FailedLoginAttempts).To(BeZero())

			Expect(env.Users.RecordLoginSuccess(ctx, u.ID)).To(Succeed())
			got, err = env.Users.FindByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.LockedUntil).To(BeNil())
		})
	})

	Describe("Organizational tree", func() {
		It("resolves names and detaches users when a node is removed", func() {
			dir, err := env.Orgs.CreateNode(ctx, model.LevelDirection, "Operations", nil)
			Expect(err).NotTo(HaveOccurred())
			mgmt, err := env.Orgs.CreateNode(ctx, model.LevelManagement, "Logistics", &dir.ID)
			Expect(err).NotTo(HaveOccurred())
			coord, err := env.Orgs.CreateNode(ctx, model.LevelCoordination, "Fleet", &mgmt.ID)
			Expect(err).NotTo(HaveOccurred())

			u := createTestUser(ctx, "ana@example.com", func(u *model.User) {
				u.Org = model.OrgPlacement{DirectionID: &dir.ID, ManagementID: &mgmt.ID, CoordinationID: &coord.ID}
			})

			got, err := env.Users.FindByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*got.Org.CoordinationName).To(Equal("Fleet"))

			Expect(env.Orgs.DeleteNode(ctx, model.LevelManagement, mgmt.ID)).To(Succeed())

			got, err = env.Users.FindByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*got.Org.DirectionID).To(Equal(dir.ID))
			Expect(got.Org.ManagementID).To(BeNil())
			Expect(got.Org.CoordinationID).To(BeNil())

			_, err = env.Orgs.Coordination(ctx, coord.ID)
			Expect(err).To(MatchError(model.ErrOrgNodeNotFound))
			Expect(env.Orgs.DeleteNode(ctx, model.LevelManagement, mgmt.ID)).To(MatchError(model.ErrOrgNodeNotFound))
		})
	})

	Describe("Revocations", func() {
		It("is idempotent and prunes only expired entries", func() {
			u := createTestUser(ctx, "ana@example.com")
			now := time.Now().UTC()

			entry := model.RevocationEntry{TokenID: "jti-1", UserID: u.ID, RevokedAt: now, ExpiresAt: now.Add(time.Minute)}
			Expect(env.Revocations.Revoke(ctx, entry)).To(Succeed())
			Expect(env.Revocations.Revoke(ctx, entry)).To(Succeed())
			Expect(env.Revocations.Revoke(ctx, model.RevocationEntry{TokenID: "jti-2", UserID: u.ID, RevokedAt: now, ExpiresAt: now.Add(time.Hour)})).To(Succeed())

			revoked, err := env.Revocations.IsRevoked(ctx, "jti-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(revoked).To(BeTrue())

			n, err := env.Revocations.DeleteExpired(ctx, now.Add(2*time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			revoked, err = env.Revocations.IsRevoked(ctx, "jti-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(revoked).To(BeTrue())
		})

		It("keeps the latest watermark", func() {
			u := createTestUser(ctx, "ana@example.com")
			later := time.Now().UTC().Truncate(time.Second)

			Expect(env.Revocations.SetWatermark(ctx, u.ID, later)).To(Succeed())
			Expect(env.Revocations.SetWatermark(ctx, u.ID, later.Add(-time.Hour))).To(Succeed())

			got, ok, err := env.Revocations.Watermark(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(got.Equal(later)).To(BeTrue())
		})
	})

	Describe("Reset tokens", func() {
		It("can be consumed exactly once under contention", func() {
			u := createTestUser(ctx, "ana@example.com")
			now := time.Now().UTC()
			reset := model.ResetToken{
				ID:         ulid.Make().String(),
				UserID:     u.ID,
				SecretHash: "0000000000000000000000000000000000000000000000000000000000000000",
				CreatedAt:  now,
				ExpiresAt:  now.Add(30 * time.Minute),
			}
			Expect(env.Resets.Create(ctx, reset)).To(Succeed())

			check := func(r model.ResetToken) error {
				if r.IsConsumed() || r.IsExpiredAt(time.Now().UTC()) {
					return model.ErrInvalidResetToken
				}
				return nil
			}

			var (
				wg        sync.WaitGroup
				successes atomic.Int32
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					if _, err := env.Resets.Consume(ctx, reset.ID, "new-hash", time.Now().UTC(), check); err == nil {
						successes.Add(1)
					}
				}()
			}
			wg.Wait()

			Expect(successes.Load()).To(Equal(int32(1)))

			got, err := env.Users.FindByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal("new-hash"))
		})
	})
})
