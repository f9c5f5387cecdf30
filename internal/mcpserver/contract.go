package mcpserver

// NoteFormatContract describes the note files and link syntax the index
// understands.
const NoteFormatContract = `# Notegraph Note Format

## Files

Notes live under the notes root as ` + "`" + `YYYY/MM/<id>.md` + "`" + `, or ` + "`" + `<id>.md.gpg` + "`" + ` when
encrypted. The id is the creation timestamp, ` + "`" + `YYYYMMDDHHMMSS` + "`" + ` (14 digits).

` + "```" + `markdown
---
title: Weekly standup
tags:
  - meetings
  - project-x
created: 2025-01-20T09:30:00Z
modified: 2025-01-20T10:02:11Z
---

# Weekly standup

Follow up on [[Roadmap#Q2 goals]] and [[20250114083000|last week]].
Decision recorded here. ^a1b2c3

- [ ] send minutes due:2025-01-21
- [x] book room
` + "```" + `

## Frontmatter

- ` + "`" + `title` + "`" + `: display name, also the primary link target. Falls back to the first
  ` + "`" + `# ` + "`" + ` heading, then to "Untitled".
- ` + "`" + `tags` + "`" + `: YAML list (or a space/comma separated string). Tags of the form
  ` + "`" + `folder:<name>` + "`" + ` file the note under a folder.
- ` + "`" + `created` + "`" + ` / ` + "`" + `modified` + "`" + `: RFC 3339 timestamps.

## Links

| Syntax | Meaning |
|---|---|
| ` + "`" + `[[Title]]` + "`" + ` | whole note, by title (case-insensitive) |
| ` + "`" + `[[20250114083000]]` + "`" + ` | whole note, by id |
| ` + "`" + `[[Title#Heading]]` + "`" + ` | one section; heading text or slug |
| ` + "`" + `[[Title^a1b2c3]]` + "`" + ` | one block anchored with ` + "`" + ` ^a1b2c3` + "`" + ` at a line end |
| ` + "`" + `[[Title|shown text]]` + "`" + ` | any of the above with an alias |

Block ids are lowercase hex. When several notes share a title the most
recently indexed one wins; link by id to be exact.

## Tasks

GitHub-style task list items are indexed as todos. A due date may be given as
` + "`" + `due:YYYY-MM-DD` + "`" + ` or ` + "`" + `@due(YYYY-MM-DD)` + "`" + `.
`
