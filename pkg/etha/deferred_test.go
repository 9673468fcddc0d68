// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package etha

import (
	"errors"
	"testing"
)

func TestDeferredResolve(t *testing.T) {
	d := newDeferred()

	var before, after string
	d.Then(func(status string) { before = status }, func(err error) { t.Fatal(err) })

	d.resolve("sent")
	d.reject(errMock)

	d.Then(func(status string) { after = status }, nil).Catch(func(err error) { t.Fatal(err) })

	if before != "sent" || after != "sent" {
		t.Fatalf("callbacks got %q and %q", before, after)
	}

	select {
	case <-d.Done():
	default:
		t.Fatal("Done is not closed")
	}

	if status, err := d.Result(); status != "sent" || err != nil {
		t.Fatalf("result is %q, %v", status, err)
	}
}

func TestDeferredReject(t *testing.T) {
	d := newDeferred()

	var errs []error
	d.Catch(func(err error) { errs = append(errs, err) })
	d.Then(func(string) { t.Fatal("rejected deferred resolved") }, nil)

	d.reject(&TransmitError{Status: StatusFailed})
	d.Catch(func(err error) { errs = append(errs, err) })

	if len(errs) != 2 {
		t.Fatalf("%d errors", len(errs))
	}
	var te *TransmitError
	if !errors.As(errs[0], &te) || te.Status != StatusFailed {
		t.Fatalf("unexpected error %v", errs[0])
	}
	if !d.Settled() {
		t.Fatal("deferred is not settled")
	}
}
