package api

const saveImportSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["tipo", "periodoRef", "arquivo", "linhas", "valorTotal"],
  "properties": {
    "tipo": {"type": "string", "enum": ["extrato", "omie", "cartao"]},
    "periodoRef": {"type": "string", "pattern": "^\\d{4}-(0[1-9]|1[0-2])$"},
    "arquivo": {"type": "string", "minLength": 1, "maxLength": 255},
    "linhas": {"type": "integer", "minimum": 0},
    "valorTotal": {"type": ["number", "string"]},
    "saldoAnterior": {"type": ["number", "string", "null"]},
    "linhasBrutas": {"type": "array"}
  }
}`

const runSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["periodoRef", "extrato", "omie"],
  "properties": {
    "periodoRef": {"type": "string", "pattern": "^\\d{4}-(0[1-9]|1[0-2])$"},
    "extrato": {"type": "array", "items": {"type": "object"}},
    "omie": {"type": "array", "items": {"type": "object"}},
    "cartao": {"type": "array", "items": {"type": "object"}},
    "contaCorrenteSelecionada": {"type": ["string", "null"]},
    "saldos": {"type": "object"},
    "persistir": {"type": "boolean"}
  }
}`
