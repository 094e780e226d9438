package checklist

var defaultChecks = []string{
	"Are all cover/invert levels shown, consistent, and buildable?",
	"Are pipe bedding types correct per CESWI/UUCESWI?",
	"Is flow direction clearly shown?",
	"Do chamber references and layouts match schedules?",
	"Are wall, slab, and foundation thicknesses shown and labelled?",
	"Is reinforcement correctly detailed?",
	"Are pipe sizes, gradients, and materials labelled?",
	"Are access ladders, platforms, or landings included where needed?",
	"Are chambers and covers accessible for lifting and maintenance?",
	"Are plans, sections, and detail views coordinated?",
	"Are cable tray routes clash-free with civils?",
	"Are ducts shown with correct layout, spacing, and annotation?",
	"Are drawpits and duct bends buildable and spaced to spec?",
	"Are pumps and valves fully detailed and accessible?",
	"Are mechanical/electrical isolations clearly marked?",
	"Are sensors and instruments located correctly?",
	"Are control panels coordinated with structure?",
	"Are civils penetrations shown for M&E systems?",
	"Are vent routes logical and clash-free?",
	"Are bonding and earthing points compliant?",
	"Does this drawing comply with CESWI/UUCESWI?",
	"Are United Utilities (UU) standard details applied correctly?",
	"Is this the current approved-for-construction revision?",
	"Are referenced drawings accurate and consistent?",
	"Are temporary works or staged build notes included where required?",
	"Are maintenance/lifting zones and fall protection shown?",
	"Is the scope clear in the title block and general notes?",
	"Is the drawing coordinated with current RAMS and construction methods?",
	"Are services and structures shown logically and buildable?",
	"Are there any omissions identified using your internal engineering knowledge?",
}
