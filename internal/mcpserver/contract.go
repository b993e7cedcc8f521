package mcpserver

// OutputNamingContract describes how gridsplit names and lays out the files
// it writes, so LLM consumers can reference them afterwards.
const OutputNamingContract = `# gridsplit Output Naming Contract

Every file written by the ` + "`" + `split_image` + "`" + ` and ` + "`" + `merge_images` + "`" + ` tools follows these rules.

## File names

- Pieces are named ` + "`" + `{base_name}_{n}.{ext}` + "`" + ` where ` + "`" + `n` + "`" + ` starts at 1.
- Split pieces are numbered row by row, left to right. The default base name is ` + "`" + `split` + "`" + `.
- A merge produces one file, ` + "`" + `{base_name}_1.{ext}` + "`" + `. The default base name is ` + "`" + `merged` + "`" + `.
- ` + "`" + `jpeg` + "`" + ` output uses the ` + "`" + `.jpg` + "`" + ` extension; ` + "`" + `png` + "`" + ` and ` + "`" + `webp` + "`" + ` keep their names.
- Base names must not contain path separators; invalid names fall back to the default.

## Directories

- Files land in ` + "`" + `{dir}/` + "`" + ` under the output root. ` + "`" + `dir` + "`" + ` defaults to a fresh id.
- With ` + "`" + `zip: true` + "`" + ` the directory also gets ` + "`" + `split_images.zip` + "`" + ` or ` + "`" + `merged_image.zip` + "`" + `.

## Regions

Each split piece reports its region name ` + "`" + `split_{row}_{col}` + "`" + ` (1-based) and its
source rectangle in full-image pixels, so a piece can be traced back to the original.

## Encoding

- ` + "`" + `format` + "`" + `: ` + "`" + `jpeg` + "`" + `, ` + "`" + `png` + "`" + ` (default) or ` + "`" + `webp` + "`" + `.
- ` + "`" + `quality` + "`" + `: 10..100, used by jpeg and webp only (default 92).
- ` + "`" + `upscale` + "`" + `: integer factor; every output dimension is multiplied by it exactly.

## Image sources

Tools accept ` + "`" + `data:image/...;base64,` + "`" + ` URIs, public ` + "`" + `http(s)` + "`" + ` URLs, or paths of files
previously written under the output root (for example ` + "`" + `run-1/split_2.png` + "`" + `).
`
