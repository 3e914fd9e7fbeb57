// Package collections defines the ordered schedule of tenant subcollections.
//
// Order matters: Directory Store triggers derive data across collections
// (Customers writes resync Sites, OperationResults writes regenerate
// Billings), so bulk clears and bulk restores walk the schedule front to back
// and wait the configured settle delay after a collection that feeds a
// trigger.
package collections

import (
	"time"

	"github.com/juju/collections/set"
)

// Users holds the tenant's login-capable users; its documents are linked to
// Identity Store records.
const Users = "Users"

// Collection is one entry of the schedule.
type Collection struct {
	Name               string
	SettleAfterClear   time.Duration
	SettleAfterRestore time.Duration
	Description        string
}

// IdentityLinked reports whether documents of c mirror identity records.
func (c Collection) IdentityLinked() bool {
	return c.Name == Users
}

// Schedule is an ordered list of collections.
type Schedule []Collection

// Default is the schedule of every tenant.
var Default = Schedule{
	{Name: "Customers", SettleAfterClear: 3 * time.Second, SettleAfterRestore: 5 * time.Second, Description: "customer master (feeds Sites)"},
	{Name: "Customers_archive", Description: "archived customers"},
	{Name: "Sites", Description: "site master (synced from Customers)"},
	{Name: "Sites_archive", Description: "archived sites"},
	{Name: "Employees", Description: "employee master"},
	{Name: "Employees_archive", Description: "archived employees"},
	{Name: "Outsourcers", Description: "outsourcer master"},
	{Name: "Outsourcers_archive", Description: "archived outsourcers"},
	{Name: "SiteOperationSchedules", Description: "site operation schedules"},
	{Name: "OperationResults", SettleAfterClear: 3 * time.Second, SettleAfterRestore: 5 * time.Second, Description: "operation results (feeds Billings)"},
	{Name: "Billings", Description: "billings (generated from OperationResults)"},
	{Name: "ArrangementNotifications", Description: "arrangement notifications"},
	{Name: "Autonumbers", Description: "sequence counters"},
	{Name: Users, Description: "users (processed last)"},
}

// Names returns the collection names in schedule order.
func (s Schedule) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the entry for name.
func (s Schedule) Lookup(name string) (Collection, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}

// Select returns the entries of s whose names are in wanted, in schedule
// order. Identity-linked collections are left out unless includeIdentity is
// set. Names in wanted that are not part of the schedule are returned as
// unknown.
func (s Schedule) Select(wanted []string, includeIdentity bool) (selected Schedule, unknown []string) {
	want := set.NewStrings(wanted...)
	for _, c := range s {
		if !want.Contains(c.Name) {
			continue
		}
		want.Remove(c.Name)
		if c.IdentityLinked() && !includeIdentity {
			continue
		}
		selected = append(selected, c)
	}
	return selected, want.SortedValues()
}
