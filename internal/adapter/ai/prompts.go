package ai

import (
	"github.com/arturoeanton/autodeploy-agent/internal/domain"
)

// hostingRules keep every generated project buildable on Vercel without 404s on client routes.
const hostingRules = `
CRITICAL VERCEL DEPLOYMENT RULES:
1. vercel.json REQUIRED: include a 'vercel.json' file in the root with EXACTLY this content:
   { "rewrites": [{ "source": "/(.*)", "destination": "/index.html" }] }
2. Vite Config: 'vite.config.ts' must be standard and build to the 'dist' folder.
3. Entry Point: 'index.html' must be in the ROOT directory and its script src must point to "/src/main.tsx".
4. Package.json: 'scripts' must contain "build": "vite build".
`

const generateInstruction = `
You are an intelligent Full-Stack AI Developer.

YOUR GOAL:
Generate a complete, production-ready React + Vite application based on the user's request.

TECHNICAL STACK RULES:
1. Framework: Vite + React + TypeScript.
2. Styling: Tailwind CSS (include 'postcss.config.js', 'tailwind.config.js' and 'src/index.css' with @tailwind directives).
3. Icons: 'lucide-react'.
4. Dependencies: 'package.json' includes 'react', 'react-dom', 'lucide-react', 'clsx', 'tailwind-merge'.
   Dev dependencies: 'vite', 'typescript', 'tailwindcss', 'postcss', 'autoprefixer'.
5. Configuration: a valid 'vite.config.ts' and 'tsconfig.json'.
` + hostingRules + `
BEHAVIOR:
- Be creative with the UI. Use dark mode by default if not specified.
- The app must be self-contained.
- Return ONLY the JSON structure matching the schema.
`

const pasteInstruction = `
You are an expert Code Architect AI. The user is pasting a blob of code, possibly several files mixed together.

YOUR GOAL:
Parse the text, identify distinct files, and structure them into a deployable project.

RULES:
1. File Separation: look for comments like "// File: App.tsx" or standard React patterns to separate files.
2. Missing Files: if only part of an app is pasted, GENERATE the surrounding infrastructure
   ('index.html', 'package.json', 'vite.config.ts', 'src/main.tsx', 'src/index.css', 'vercel.json') so it runs on Vercel.
3. Dependencies: analyze imports in the pasted code and add them to 'package.json'.
4. Refactoring: if the code is messy, clean it up.
` + hostingRules + `
Output: return ONLY the JSON structure matching the schema.
`

// systemInstruction returns the instruction for a generation mode.
func systemInstruction(mode domain.Mode) string {
	if mode == domain.ModePaste {
		return pasteInstruction
	}
	return generateInstruction
}

// projectSchema describes the Project shape. Gemini wants upper-case OpenAPI type
// names while Ollama takes plain JSON Schema.
func projectSchema(upperTypes bool) map[string]any {
	t := func(name string) string {
		if upperTypes {
			switch name {
			case "object":
				return "OBJECT"
			case "array":
				return "ARRAY"
			default:
				return "STRING"
			}
		}
		return name
	}

	return map[string]any{
		"type": t("object"),
		"properties": map[string]any{
			"name": map[string]any{
				"type":        t("string"),
				"description": "A URL-friendly kebab-case name for the project (e.g., my-todo-app).",
			},
			"description": map[string]any{
				"type":        t("string"),
				"description": "A short description of what the app does.",
			},
			"files": map[string]any{
				"type":        t("array"),
				"description": "The source code files for the application.",
				"minItems":    1,
				"items": map[string]any{
					"type": t("object"),
					"properties": map[string]any{
						"path": map[string]any{
							"type":        t("string"),
							"description": "The file path (e.g., 'src/App.tsx', 'index.html', 'package.json').",
						},
						"content": map[string]any{
							"type":        t("string"),
							"description": "The full text content of the file.",
						},
					},
					"required": []string{"path", "content"},
				},
			},
		},
		"required": []string{"name", "description", "files"},
	}
}
