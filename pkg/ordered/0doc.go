// SPDX-FileCopyrightText: 2026 The etha Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ordered provides an insertion-ordered associative container.
//
// A Map remembers the order in which keys were first inserted. Iteration is
// performed on a snapshot of the keys, so callbacks may add or delete entries
// while the Map is being walked. Deleted keys are skipped, new keys are not
// visited by an ongoing iteration.
package ordered
