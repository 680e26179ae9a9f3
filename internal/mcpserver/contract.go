package mcpserver

// RecordFormatURI is the resource URI of RecordFormatContract.
const RecordFormatURI = "daybook://record-format"

// RecordFormatContract describes how day records are stored and which fields
// the add_note and add_job tools accept.
const RecordFormatContract = `# Daybook Record Format

Records belong to a day. A day is addressed by its date key ` + "`" + `YYYY-MM-DD` + "`" + `
(local calendar date, zero padded). Tools that take a ` + "`" + `date` + "`" + ` also accept
phrases such as ` + "`" + `today` + "`" + `, ` + "`" + `tomorrow` + "`" + ` or ` + "`" + `next friday` + "`" + `.

Each day holds two independent, ordered lists: notes and jobs. A day's list is
always replaced as a whole; there are no partial updates.

## Note

` + "```" + `json
{"id": 1732000000000, "text": "Order timber"}
` + "```" + `

- ` + "`" + `text` + "`" + ` is required and must not be blank.
- ` + "`" + `id` + "`" + ` is the creation time in milliseconds. Ids are numbers when numeric,
  strings otherwise; both forms are accepted.

## Job

` + "```" + `json
{
  "id": 1732000000001,
  "title": "Fix fence",
  "location": "12 Elm St",
  "quote": 1250.5,
  "tools": "saw, drill",
  "status": "Pending",
  "dateKey": "2025-11-19",
  "createdAt": "2025-11-19T09:30:00Z"
}
` + "```" + `

- ` + "`" + `title` + "`" + ` is required and must not be blank.
- ` + "`" + `quote` + "`" + ` is entered as free text ("$1,250.50"). Currency signs,
  thousands separators and spaces are stripped; ` + "`" + `.` + "`" + ` is the decimal separator.
  Negative or unreadable amounts become 0. Amounts are kept to the cent.
- ` + "`" + `status` + "`" + ` starts at the first status of the configured cycle and only moves
  forward through ` + "`" + `advance_job_status` + "`" + `, wrapping after the last one.
  Basic cycle: Pending, In Progress, Complete.
  Extended cycle: Scheduled, In-Progress, Complete, Invoiced, Paid.

## Weeks

Weeks start on Monday. ` + "`" + `week_summary` + "`" + ` returns the seven days around a date with
each day's quote total and the week total.
`
