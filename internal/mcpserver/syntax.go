package mcpserver

// SyntaxURI identifies the wiki-link syntax resource.
const SyntaxURI = "wikipress://syntax"

// WikiLinkSyntax describes the reference forms wikipress rewrites, for LLM
// consumers that write or review content.
const WikiLinkSyntax = `# Wiki-link Syntax

wikipress rewrites two reference forms in Markdown bodies.

## Document links

` + "```" + `markdown
[[target]]
[[target|display text]]
` + "```" + `

- ` + "`target`" + ` is a document file name without its extension. It is matched
  exactly and case-sensitively against every document in the content tree,
  regardless of folder.
- Whitespace around the target and the display text is ignored.
- A resolved link becomes ` + "`[display]({filename}/dir/target.md)`" + `.
- An unresolved link is replaced by its display text alone.

## Asset embeds

` + "```" + `markdown
![[chart.png]]
![[chart.png|Alt text]]
![[report.pdf]]
` + "```" + `

- The target is a file name including its extension.
- Images become ` + "`![display]({static}/dir/file)`" + `.
- PDF files become an inline viewer followed by a download link.
- An embed whose file is not in the content tree is removed.

## Rules

1. The target may not contain ` + "`|`" + ` or ` + "`]`" + `.
2. The display text needs at least one character and ends at the first ` + "`]]`" + `.
3. A ` + "`[[`" + ` without a closing ` + "`]]`" + ` is left untouched.
4. Embeds are rewritten before document links, so a link's display text may
   itself contain an embed.
5. When two files share a name, the one later in path order wins.

## Tags

Front-matter tags may be written with or without ` + "`#`" + `, comma separated or
as a YAML list. ` + "`tags: #work, #home`" + ` normalizes to ` + "`[work, home]`" + `.
`
