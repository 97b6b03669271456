package mcpserver

// VaultFormatContract describes the vault layout and note format for MCP
// clients reading or extending the vault.
const VaultFormatContract = `# Vault Format

The vault is a directory of Markdown notes kept in a fixed set of top-level folders.

## Layout

- ` + "`" + `Projects/` + "`" + ` long-running efforts; one note or one sub-folder per project.
- ` + "`" + `Actions/` + "`" + ` tasks with optional ` + "`" + `due_date` + "`" + ` and ` + "`" + `priority` + "`" + `.
- ` + "`" + `Media/` + "`" + ` books, films, podcasts, articles.
- ` + "`" + `Reference/` + "`" + ` facts, how-tos, recipes.
- ` + "`" + `Inbox/` + "`" + ` anything that did not fit elsewhere, plus daily briefings.
- ` + "`" + `Attachments/` + "`" + ` flat directory of uploaded files. Notes embed them as ` + "`" + `![[name.jpg]]` + "`" + ` or link them as ` + "`" + `[[name.pdf]]` + "`" + `.
- ` + "`" + `_brain/directives.md` + "`" + ` standing rules, one per line. Use the directive tools, never edit it directly.

## Notes

` + "```" + `markdown
---
created: 2026-10-19 08:30
source: chat
tags:
  - garden
---

Body text in standard Markdown.
` + "```" + `

1. Frontmatter values are strings or lists of strings. Keys are lowercase snake_case.
2. File names are lowercase kebab-case slugs. A taken name gets a ` + "`" + `-1` + "`" + `, ` + "`" + `-2` + "`" + `, ... suffix.
3. Paths are vault-relative with forward slashes, e.g. ` + "`" + `Projects/garden.md` + "`" + `.
4. Search matches keywords against file names and frontmatter values only, not bodies.
`
