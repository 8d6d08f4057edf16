package errors

import (
	"fmt"
	"testing"

	"github.com/onsi/gomega"
)

func TestKindRoundTrip(t *testing.T) {
	g := gomega.NewWithT(t)

	err := Validation("bad schema name: %s", "a;b")
	g.Expect(GetKind(err)).To(gomega.Equal(KindValidation))
	g.Expect(IsKind(err, KindValidation)).To(gomega.BeTrue())
	g.Expect(IsKind(err, KindProvisioning)).To(gomega.BeFalse())
}

func TestKindSurvivesWrapping(t *testing.T) {
	g := gomega.NewWithT(t)

	inner := Provisioning(fmt.Errorf("connection refused"), "create database failed")
	wrapped := fmt.Errorf("tenant acme: %w", inner)

	g.Expect(GetKind(wrapped)).To(gomega.Equal(KindProvisioning))
	g.Expect(wrapped.Error()).To(gomega.ContainSubstring("connection refused"))
}

func TestForeignError(t *testing.T) {
	g := gomega.NewWithT(t)

	g.Expect(GetKind(fmt.Errorf("plain"))).To(gomega.Equal(Kind("")))
}
