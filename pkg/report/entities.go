package report

// Reportable entities of the business-management application
const (
	EntityClients     EntityKey = "clients"
	EntityOrders      EntityKey = "orders"
	EntityInventory   EntityKey = "inventory"
	EntityInvoices    EntityKey = "invoices"
	EntityMaintenance EntityKey = "maintenance"
	EntityReviews     EntityKey = "reviews"
)

var (
	comparisonOps = []Op{OpGt, OpGte, OpLt, OpLte, OpNeq, OpBetween}
	textOps       = []Op{OpContains, OpNeq, OpIn}
	enumOps       = []Op{OpNeq, OpIn}
)

var clientLookup = Lookup{Table: "clients", ForeignKey: "client_id", Field: "name"}

// DefaultEntities returns the built-in entity catalog in presentation order
func DefaultEntities() []EntityConfig {
	return []EntityConfig{
		{
			Key:   EntityClients,
			Label: "Clients",
			Table: "clients",
			Columns: []Column{
				{Name: "id", Label: "ID", Type: ColumnNumber, Filterable: true},
				{Name: "name", Label: "Name", Type: ColumnText, Filterable: true, AdvancedOperators: textOps},
				{Name: "email", Label: "Email", Type: ColumnText, Filterable: true, AdvancedOperators: textOps},
				{Name: "phone", Label: "Phone", Type: ColumnText},
				{Name: "company", Label: "Company", Type: ColumnText, Filterable: true, AdvancedOperators: textOps},
				{Name: "city", Label: "City", Type: ColumnText, Filterable: true, AdvancedOperators: textOps},
				{Name: "status", Label: "Status", Type: ColumnEnum, Filterable: true, AdvancedOperators: enumOps},
				{Name: "total_spent", Label: "Total spent", Type: ColumnMoney, AdvancedOperators: comparisonOps},
				{Name: "created_at", Label: "Created", Type: ColumnDate, AdvancedOperators: comparisonOps},
			},
			DefaultColumns: []string{"id", "name", "email", "status"},
		},
		{
			Key:   EntityOrders,
			Label: "Orders",
			Table: "orders",
			Columns: []Column{
				{Name: "id", Label: "ID", Type: ColumnNumber, Filterable: true},
				{Name: "order_number", Label: "Order #", Type: ColumnText, Filterable: true, AdvancedOperators: textOps},
				{Name: "client_id", Label: "Client ID", Type: ColumnNumber, Filterable: true, AdvancedOperators: enumOps},
				{Name: "client_name", Label: "Client", Type: ColumnText, Virtual: true, Lookup: "client"},
				{Name: "status", Label: "Status", Type: ColumnEnum, Filterable: true, AdvancedOperators: enumOps},
				{Name: "total", Label: "Total", Type: ColumnMoney, AdvancedOperators: comparisonOps},
				{Name: "order_date", Label: "Order date", Type: ColumnDate, AdvancedOperators: comparisonOps},
				{Name: "created_at", Label: "Created", Type: ColumnDate, AdvancedOperators: comparisonOps},
			},
			DefaultColumns: []string{"id", "order_number", "client_name", "status", "total"},
			Lookups:        map[string]Lookup{"client": clientLookup},
		},
		{
			Key:   EntityInventory,
			Label: "Inventory",
			Table: "inventory_items",
			Columns: []Column{
				{Name: "id", Label: "ID", Type: ColumnNumber, Filterable: true},
				{Name: "sku", Label: "SKU", Type: ColumnText, Filterable: true, AdvancedOperators: textOps},
				{Name: "name", Label: "Name", Type: ColumnText, Filterable: true, AdvancedOperators: textOps},
				{Name: "category", Label: "Category", Type: ColumnEnum, Filterable: true, AdvancedOperators: enumOps},
				{Name: "quantity", Label: "Quantity", Type: ColumnNumber, AdvancedOperators: comparisonOps},
				{Name: "reorder_level", Label: "Reorder level", Type: ColumnNumber, AdvancedOperators: comparisonOps},
				{Name: "unit_price", Label: "Unit price", Type: ColumnMoney, AdvancedOperators: comparisonOps},
				{Name: "supplier_id", Label: "Supplier ID", Type: ColumnNumber, Filterable: true},
				{Name: "supplier_name", Label: "Supplier", Type: ColumnText, Virtual: true, Lookup: "supplier"},
			},
			DefaultColumns: []string{"id", "sku", "name", "quantity", "unit_price"},
			Lookups: map[string]Lookup{
				"supplier": {Table: "suppliers", ForeignKey: "supplier_id", Field: "name"},
			},
		},
		{
			Key:   EntityInvoices,
			Label: "Invoices",
			Table: "invoices",
			Columns: []Column{
				{Name: "id", Label: "ID", Type: ColumnNumber, Filterable: true},
				{Name: "invoice_number", Label: "Invoice #", Type: ColumnText, Filterable: true, AdvancedOperators: textOps},
				{Name: "order_id", Label: "Order ID", Type: ColumnNumber, Filterable: true},
				{Name: "order_number", Label: "Order #", Type: ColumnText, Virtual: true, Lookup: "order"},
				{Name: "client_id", Label: "Client ID", Type: ColumnNumber, Filterable: true, AdvancedOperators: enumOps},
				{Name: "client_name", Label: "Client", Type: ColumnText, Virtual: true, Lookup: "client"},
				{Name: "amount", Label: "Amount", Type: ColumnMoney, AdvancedOperators: comparisonOps},
				{Name: "status", Label: "Status", Type: ColumnEnum, Filterable: true, AdvancedOperators: enumOps},
				{Name: "issued_at", Label: "Issued", Type: ColumnDate, AdvancedOperators: comparisonOps},
				{Name: "due_date", Label: "Due", Type: ColumnDate, AdvancedOperators: comparisonOps},
				{Name: "paid_at", Label: "Paid", Type: ColumnDate, AdvancedOperators: comparisonOps},
			},
			DefaultColumns: []string{"id", "invoice_number", "client_name", "amount", "status"},
			Lookups: map[string]Lookup{
				"client": clientLookup,
				"order":  {Table: "orders", ForeignKey: "order_id", Field: "order_number"},
			},
		},
		{
			Key:   EntityMaintenance,
			Label: "Maintenance",
			Table: "maintenance_requests",
			Columns: []Column{
				{Name: "id", Label: "ID", Type: ColumnNumber, Filterable: true},
				{Name: "title", Label: "Title", Type: ColumnText, AdvancedOperators: textOps},
				{Name: "equipment", Label: "Equipment", Type: ColumnText, Filterable: true, AdvancedOperators: textOps},
				{Name: "priority", Label: "Priority", Type: ColumnEnum, Filterable: true, AdvancedOperators: enumOps},
				{Name: "status", Label: "Status", Type: ColumnEnum, Filterable: true, AdvancedOperators: enumOps},
				{Name: "assigned_to", Label: "Technician ID", Type: ColumnNumber, Filterable: true},
				{Name: "technician_name", Label: "Technician", Type: ColumnText, Virtual: true, Lookup: "technician"},
				{Name: "scheduled_date", Label: "Scheduled", Type: ColumnDate, AdvancedOperators: comparisonOps},
				{Name: "completed_at", Label: "Completed", Type: ColumnDate, AdvancedOperators: comparisonOps},
				{Name: "cost", Label: "Cost", Type: ColumnMoney, AdvancedOperators: comparisonOps},
			},
			DefaultColumns: []string{"id", "title", "priority", "status", "scheduled_date"},
			Lookups: map[string]Lookup{
				"technician": {Table: "employees", ForeignKey: "assigned_to", Field: "name"},
			},
		},
		{
			Key:   EntityReviews,
			Label: "Reviews",
			Table: "reviews",
			Columns: []Column{
				{Name: "id", Label: "ID", Type: ColumnNumber, Filterable: true},
				{Name: "client_id", Label: "Client ID", Type: ColumnNumber, Filterable: true},
				{Name: "client_name", Label: "Client", Type: ColumnText, Virtual: true, Lookup: "client"},
				{Name: "order_id", Label: "Order ID", Type: ColumnNumber, Filterable: true},
				{Name: "rating", Label: "Rating", Type: ColumnNumber, Filterable: true, AdvancedOperators: comparisonOps},
				{Name: "comment", Label: "Comment", Type: ColumnText, AdvancedOperators: textOps},
				{Name: "created_at", Label: "Created", Type: ColumnDate, AdvancedOperators: comparisonOps},
			},
			DefaultColumns: []string{"id", "client_name", "rating", "comment"},
			Lookups:        map[string]Lookup{"client": clientLookup},
		},
	}
}

// DefaultRegistry builds the registry of the built-in catalog
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(DefaultEntities()...)
}
