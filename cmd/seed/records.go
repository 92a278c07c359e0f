package main

import "github.com/veriflow-id/veriflow/internal/collaborators"

// seedRecords is the development registry fixture. The first group passes
// verification; the rest exercise the invalid, flagged, and mismatch paths.
// MockExtractor document numbers (ID-NNNNNN / PASS-NNNNNN) intentionally
// miss this table, which drives the manual review branch by default.
var seedRecords = []collaborators.Record{
	{
		DocumentNumber: "ID-100001",
		DocumentType:   "id_card",
		FirstName:      "Amira",
		LastName:       "Hassan",
		DateOfBirth:    "1991-03-14",
		Address:        "12 Corniche Road",
		IsValid:        true,
	},
	{
		DocumentNumber: "PASS-100002",
		DocumentType:   "passport",
		FirstName:      "Daniel",
		LastName:       "Okafor",
		DateOfBirth:    "1987-11-02",
		Address:        "448 Union Street",
		IsValid:        true,
	},
	{
		DocumentNumber: "ID-EXPIRED-001",
		DocumentType:   "id_card",
		FirstName:      "Bob",
		LastName:       "Fraud",
		DateOfBirth:    "1988-01-01",
		Address:        "999 Fake St, Nowhere",
		IsValid:        false,
		FlagReason:     "Document expired",
	},
	{
		DocumentNumber: "ID-FLAGGED-002",
		DocumentType:   "id_card",
		FirstName:      "Charlie",
		LastName:       "Suspicious",
		DateOfBirth:    "1992-05-10",
		Address:        "111 Alert Ave, Watchlist",
		IsValid:        true,
		IsFlagged:      true,
		FlagReason:     "Identity theft report filed on 2024-01-15",
	},
	{
		DocumentNumber: "PASS-REVOKED-003",
		DocumentType:   "passport",
		FirstName:      "David",
		LastName:       "Blocked",
		DateOfBirth:    "1985-11-20",
		Address:        "222 Banned Blvd, Restricted",
		IsValid:        false,
		IsFlagged:      true,
		FlagReason:     "Passport revoked due to fraud investigation",
	},
	{
		DocumentNumber: "ID-MISMATCH-004",
		DocumentType:   "id_card",
		FirstName:      "Eve",
		LastName:       "Discrepancy",
		DateOfBirth:    "1991-03-15",
		Address:        "333 Wrong Way, Mismatch",
		IsValid:        false,
		FlagReason:     "Document data mismatch with government records",
	},
}
