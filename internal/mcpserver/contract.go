package mcpserver

// GridContract describes the time and drop-target formats that LLM
// consumers should use when calling the agenda tools.
const GridContract = `# Agenda Grid Contract

## Times

- Appointment times are RFC 3339 (` + "`" + `2026-10-14T09:30:00-03:00` + "`" + `) or local
  wall-clock ` + "`" + `YYYY-MM-DDTHH:MM` + "`" + ` in the calendar timezone.
- Dates (the ` + "`" + `date` + "`" + ` argument) are ` + "`" + `YYYY-MM-DD` + "`" + `. Empty means today.
- ` + "`" + `end` + "`" + ` must be after ` + "`" + `start` + "`" + `.

## Views

- ` + "`" + `daily` + "`" + `: one calendar day.
- ` + "`" + `weekly` + "`" + `: seven days from the configured week start (Monday by default).
- ` + "`" + `monthly` + "`" + `: the calendar month. Monthly grids do not accept drops.

## Drop targets

Grid rows run from the start hour to the end hour in 15-minute slots.

| View | Target id | Meaning |
|------|-----------|---------|
| daily | ` + "`" + `H:M` + "`" + ` | hour and minute on the anchor day, e.g. ` + "`" + `14:30` + "`" + ` |
| weekly | ` + "`" + `D-H-M` + "`" + ` | day index from week start (0-6), hour, minute, e.g. ` + "`" + `2-9-15` + "`" + ` |

A drop keeps the appointment's duration. Malformed targets are rejected.

## Layout

Overlapping appointments of a day are split into columns. Each positioned
appointment reports ` + "`" + `column` + "`" + `, ` + "`" + `column_count` + "`" + `, ` + "`" + `start_position` + "`" + ` and
` + "`" + `duration` + "`" + ` in grid units (80 per hour by default) measured from the grid
start hour.

## Colours

Use one of ` + "`" + `#3b82f6` + "`" + ` (blue, default), ` + "`" + `#10b981` + "`" + ` (green), ` + "`" + `#f59e0b` + "`" + `
(amber), ` + "`" + `#ef4444` + "`" + ` (red), ` + "`" + `#8b5cf6` + "`" + ` (violet).
`
